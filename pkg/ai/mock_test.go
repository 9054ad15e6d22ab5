package ai

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"studypilot/pkg/domain"
)

func TestMockGeneratorShapes(t *testing.T) {
	gen := NewMockGenerator(0)
	for _, typ := range []domain.GenerationType{domain.TypeExplain, domain.TypeFlashcards, domain.TypeQuiz, domain.TypePlan} {
		resp, err := gen.Generate(context.Background(), GenerationRequest{Type: typ, Topic: "Photosynthesis", Amount: 5})
		if err != nil {
			t.Fatalf("generate %s: %v", typ, err)
		}
		if resp.Type != typ {
			t.Fatalf("response type = %s, want %s", resp.Type, typ)
		}
		if err := ValidateContent(typ, resp.Content); err != nil {
			t.Fatalf("content for %s invalid: %v", typ, err)
		}
	}
}

func TestMockGeneratorFlashcardCardinality(t *testing.T) {
	gen := NewMockGenerator(0)
	resp, err := gen.Generate(context.Background(), GenerationRequest{
		Type:   domain.TypeFlashcards,
		Topic:  "Mitosis",
		Amount: 3,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var set FlashcardSet
	if err := json.Unmarshal(resp.Content, &set); err != nil {
		t.Fatalf("unmarshal cards: %v", err)
	}
	if len(set.Cards) != 3 {
		t.Fatalf("got %d cards, want 3", len(set.Cards))
	}
	for i, card := range set.Cards {
		if !strings.Contains(card.Front, "Mitosis") || !strings.Contains(card.Back, "Mitosis") {
			t.Fatalf("card %d does not mention topic: %+v", i, card)
		}
	}
}

func TestMockGeneratorQuizAnswersInRange(t *testing.T) {
	gen := NewMockGenerator(0)
	resp, err := gen.Generate(context.Background(), GenerationRequest{Type: domain.TypeQuiz, Topic: "Cell biology", Amount: 7})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var quiz Quiz
	if err := json.Unmarshal(resp.Content, &quiz); err != nil {
		t.Fatalf("unmarshal quiz: %v", err)
	}
	if len(quiz.Questions) != 7 {
		t.Fatalf("got %d questions, want 7", len(quiz.Questions))
	}
	for i, q := range quiz.Questions {
		if len(q.Options) != 4 {
			t.Fatalf("question %d has %d options", i, len(q.Options))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer > 3 {
			t.Fatalf("question %d correctAnswer out of range: %d", i, q.CorrectAnswer)
		}
	}
}

func TestMockGeneratorDefaultAmount(t *testing.T) {
	gen := NewMockGenerator(0)
	resp, err := gen.Generate(context.Background(), GenerationRequest{Type: domain.TypeFlashcards, Topic: "Algebra"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var set FlashcardSet
	if err := json.Unmarshal(resp.Content, &set); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(set.Cards) != 10 {
		t.Fatalf("default amount: got %d cards, want 10", len(set.Cards))
	}
}

func TestMockGeneratorHonorsCancellation(t *testing.T) {
	gen := NewMockGenerator(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Generate(ctx, GenerationRequest{Type: domain.TypeExplain, Topic: "Gravity"}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestMockGeneratorRejectsUnknownType(t *testing.T) {
	gen := NewMockGenerator(0)
	if _, err := gen.Generate(context.Background(), GenerationRequest{Type: "ESSAY", Topic: "Gravity"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
