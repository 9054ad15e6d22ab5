package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"studypilot/pkg/domain"
)

// Typed content shapes, one per generation type. Field names mirror the
// JSON the web client renders.

type Explanation struct {
	Title       string    `json:"title"`
	Explanation string    `json:"explanation"`
	KeyPoints   []string  `json:"keyPoints"`
	Examples    []Example `json:"examples"`
}

type Example struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type FlashcardSet struct {
	Title string      `json:"title"`
	Cards []Flashcard `json:"cards"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type Quiz struct {
	Title     string         `json:"title"`
	Questions []QuizQuestion `json:"questions"`
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

type StudyPlan struct {
	Title    string    `json:"title"`
	Duration string    `json:"duration"`
	Goals    []string  `json:"goals"`
	Schedule []PlanDay `json:"schedule"`
}

type PlanDay struct {
	Day   int      `json:"day"`
	Tasks []string `json:"tasks"`
}

// ValidateContent checks that raw is well-formed JSON matching the shape
// required for the given type. Providers run every parsed reply through
// this before returning it.
func ValidateContent(t domain.GenerationType, raw json.RawMessage) error {
	switch t {
	case domain.TypeExplain:
		var c Explanation
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("explanation content: %w", err)
		}
		if strings.TrimSpace(c.Title) == "" {
			return fmt.Errorf("explanation content: title required")
		}
		if strings.TrimSpace(c.Explanation) == "" {
			return fmt.Errorf("explanation content: explanation required")
		}
		if len(c.KeyPoints) == 0 {
			return fmt.Errorf("explanation content: keyPoints required")
		}
	case domain.TypeFlashcards:
		var c FlashcardSet
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("flashcard content: %w", err)
		}
		if strings.TrimSpace(c.Title) == "" {
			return fmt.Errorf("flashcard content: title required")
		}
		if len(c.Cards) == 0 {
			return fmt.Errorf("flashcard content: cards required")
		}
		for i, card := range c.Cards {
			if strings.TrimSpace(card.Front) == "" || strings.TrimSpace(card.Back) == "" {
				return fmt.Errorf("flashcard content: card %d missing front or back", i)
			}
		}
	case domain.TypeQuiz:
		var c Quiz
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("quiz content: %w", err)
		}
		if strings.TrimSpace(c.Title) == "" {
			return fmt.Errorf("quiz content: title required")
		}
		if len(c.Questions) == 0 {
			return fmt.Errorf("quiz content: questions required")
		}
		for i, q := range c.Questions {
			if strings.TrimSpace(q.Question) == "" {
				return fmt.Errorf("quiz content: question %d empty", i)
			}
			if len(q.Options) != 4 {
				return fmt.Errorf("quiz content: question %d has %d options, want 4", i, len(q.Options))
			}
			if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
				return fmt.Errorf("quiz content: question %d correctAnswer %d out of range", i, q.CorrectAnswer)
			}
		}
	case domain.TypePlan:
		var c StudyPlan
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("plan content: %w", err)
		}
		if strings.TrimSpace(c.Title) == "" {
			return fmt.Errorf("plan content: title required")
		}
		if len(c.Goals) == 0 {
			return fmt.Errorf("plan content: goals required")
		}
		if len(c.Schedule) == 0 {
			return fmt.Errorf("plan content: schedule required")
		}
	default:
		return fmt.Errorf("unknown generation type: %q", t)
	}
	return nil
}

// parseContent validates the provider reply text as typed JSON content.
func parseContent(t domain.GenerationType, text string) (json.RawMessage, error) {
	raw := json.RawMessage(text)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: reply is not valid JSON", ErrUpstream)
	}
	if err := ValidateContent(t, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return raw, nil
}

// stripCodeFences removes a wrapping Markdown code block, with or without a
// language tag. Gemini tends to fence JSON replies even when told not to.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 && !strings.HasPrefix(text, "{") {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
