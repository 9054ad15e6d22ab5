package domain

import (
	"encoding/json"
	"time"
)

type GenerationType string

const (
	TypeExplain    GenerationType = "EXPLAIN"
	TypeFlashcards GenerationType = "FLASHCARDS"
	TypeQuiz       GenerationType = "QUIZ"
	TypePlan       GenerationType = "PLAN"
)

// ValidGenerationType reports whether t is one of the four content types.
func ValidGenerationType(t GenerationType) bool {
	switch t {
	case TypeExplain, TypeFlashcards, TypeQuiz, TypePlan:
		return true
	}
	return false
}

type ItemStatus string

const (
	StatusActive   ItemStatus = "active"
	StatusArchived ItemStatus = "archived"
)

// LibraryItem is a saved generated artifact owned by one user.
type LibraryItem struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"user_id"`
	Type      GenerationType  `json:"type"`
	Title     string          `json:"title"`
	Subject   string          `json:"subject,omitempty"`
	Tags      []string        `json:"tags"`
	Payload   json.RawMessage `json:"payload"`
	Status    ItemStatus      `json:"status"`
	Favorite  bool            `json:"favorite"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// QuizAttempt records one scored pass through a quiz. Immutable once written.
type QuizAttempt struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"user_id"`
	LibraryItemID string    `json:"library_item_id,omitempty"`
	Score         int       `json:"score"`
	Total         int       `json:"total"`
	Answers       []int     `json:"answers"`
	WeakTopics    []string  `json:"weak_topics"`
	CreatedAt     time.Time `json:"created_at"`
}

// FlashcardProgress is per-card review state keyed by (owner, set, card).
// BoxLevel is an opaque Leitner-style rung supplied by the client; nothing
// here schedules reviews or advances it.
type FlashcardProgress struct {
	OwnerID        string     `json:"user_id"`
	SetID          string     `json:"set_id"`
	CardKey        string     `json:"card_key"`
	BoxLevel       int        `json:"box_level"`
	LastReviewedAt time.Time  `json:"last_reviewed_at"`
	NextDueAt      *time.Time `json:"next_due_at,omitempty"`
}

// UsageMonthly is the save-quota counter for one owner and month.
type UsageMonthly struct {
	OwnerID       string `json:"user_id,omitempty"`
	MonthKey      string `json:"month_key"`
	ResourcesUsed int    `json:"resources_used"`
	ResourceLimit int    `json:"resource_limit"`
}

// Profile holds the study preferences collected at onboarding.
type Profile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Grade     string    `json:"grade,omitempty"`
	Subjects  []string  `json:"subjects"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Feedback is a free-form message submitted from the settings page.
type Feedback struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// MonthKey formats t as the YYYY-MM quota period identifier, in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
