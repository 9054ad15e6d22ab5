package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"studypilot/pkg/domain"
)

const defaultMockDelay = 2 * time.Second

// MockGenerator produces deterministic offline content. It is the default
// provider and the one used in tests; the delay emulates real provider
// latency and respects context cancellation.
type MockGenerator struct {
	delay time.Duration
}

// NewMockGenerator builds a mock provider with the given artificial delay.
// A non-positive delay disables it.
func NewMockGenerator(delay time.Duration) *MockGenerator {
	return &MockGenerator{delay: delay}
}

// Generate implements Generator with canned content derived from the topic.
func (g *MockGenerator) Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	req = req.withDefaults()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return GenerationResponse{}, ctx.Err()
		}
	}

	var content any
	switch req.Type {
	case domain.TypeExplain:
		content = Explanation{
			Title: fmt.Sprintf("Explanation: %s", req.Topic),
			Explanation: fmt.Sprintf(
				"This is a %s explanation of %s. In this topic, we explore the fundamental concepts and their applications. "+
					"The key points include understanding the core principles, recognizing patterns, and applying knowledge to solve problems.",
				req.Difficulty, req.Topic),
			KeyPoints: []string{
				fmt.Sprintf("Key concept 1 related to %s", req.Topic),
				fmt.Sprintf("Key concept 2 related to %s", req.Topic),
				fmt.Sprintf("Key concept 3 related to %s", req.Topic),
			},
			Examples: []Example{{
				Question: fmt.Sprintf("Example question about %s?", req.Topic),
				Answer:   "This is how you would approach this example.",
			}},
		}
	case domain.TypeFlashcards:
		cards := make([]Flashcard, req.Amount)
		for i := range cards {
			cards[i] = Flashcard{
				Front: fmt.Sprintf("Question %d about %s", i+1, req.Topic),
				Back:  fmt.Sprintf("Answer %d explaining the concept related to %s", i+1, req.Topic),
			}
		}
		content = FlashcardSet{
			Title: fmt.Sprintf("Flashcards: %s", req.Topic),
			Cards: cards,
		}
	case domain.TypeQuiz:
		questions := make([]QuizQuestion, req.Amount)
		for i := range questions {
			questions[i] = QuizQuestion{
				Question: fmt.Sprintf("Question %d about %s?", i+1, req.Topic),
				Options: []string{
					fmt.Sprintf("Option A for question %d", i+1),
					fmt.Sprintf("Option B for question %d", i+1),
					fmt.Sprintf("Option C for question %d", i+1),
					fmt.Sprintf("Option D for question %d", i+1),
				},
				CorrectAnswer: 0,
				Explanation:   fmt.Sprintf("Explanation for question %d", i+1),
			}
		}
		content = Quiz{
			Title:     fmt.Sprintf("Quiz: %s", req.Topic),
			Questions: questions,
		}
	case domain.TypePlan:
		content = StudyPlan{
			Title:    fmt.Sprintf("Study Plan: %s", req.Topic),
			Duration: "2 weeks",
			Goals: []string{
				fmt.Sprintf("Understand the basics of %s", req.Topic),
				"Practice key concepts",
				"Review and test knowledge",
			},
			Schedule: []PlanDay{
				{Day: 1, Tasks: []string{fmt.Sprintf("Introduction to %s", req.Topic), "Read chapter 1"}},
				{Day: 2, Tasks: []string{"Practice exercises", "Review notes"}},
			},
		}
	default:
		return GenerationResponse{}, fmt.Errorf("invalid generation type: %q", req.Type)
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return GenerationResponse{}, err
	}
	return GenerationResponse{Type: req.Type, Content: raw}, nil
}
