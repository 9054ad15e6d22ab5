package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.

type LibraryItemModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Type      string `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Subject   string
	Tags      datatypes.JSON `gorm:"type:jsonb"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	Status    string         `gorm:"not null;default:active;index"`
	Favorite  bool           `gorm:"not null;default:false"`
	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type QuizAttemptModel struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index"`
	LibraryItemID string `gorm:"index"`
	Score         int    `gorm:"not null"`
	Total         int    `gorm:"not null"`
	Answers       datatypes.JSON `gorm:"type:jsonb"`
	WeakTopics    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;index"`
}

type FlashcardProgressModel struct {
	UserID         string `gorm:"primaryKey"`
	SetID          string `gorm:"primaryKey"`
	CardKey        string `gorm:"primaryKey"`
	BoxLevel       int    `gorm:"not null"`
	LastReviewedAt time.Time `gorm:"not null"`
	NextDueAt      *time.Time
}

type UsageMonthlyModel struct {
	UserID        string `gorm:"primaryKey"`
	MonthKey      string `gorm:"primaryKey"`
	ResourcesUsed int    `gorm:"not null"`
	ResourceLimit int    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type ProfileModel struct {
	UserID    string `gorm:"primaryKey"`
	Name      string
	Grade     string
	Subjects  datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type FeedbackModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Type      string `gorm:"not null"`
	Message   string `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}
