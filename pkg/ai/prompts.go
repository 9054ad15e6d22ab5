package ai

import (
	"fmt"
	"strings"

	"studypilot/pkg/domain"
)

const systemPrompt = "You are an expert educational assistant. Generate high-quality educational content."

// Per-type JSON schema fragments the model is instructed to return.
var contentSchemas = map[domain.GenerationType]string{
	domain.TypeExplain:    `{title: string, explanation: string, keyPoints: string[], examples: [{question: string, answer: string}]}`,
	domain.TypeFlashcards: `{title: string, cards: [{front: string, back: string}]}`,
	domain.TypeQuiz:       `{title: string, questions: [{question: string, options: [string, string, string, string], correctAnswer: number (0-3), explanation: string}]}`,
	domain.TypePlan:       `{title: string, duration: string, goals: string[], schedule: [{day: number, tasks: string[]}]}`,
}

// userPrompt renders the type-specific instruction for a request whose
// defaults are already applied.
func userPrompt(req GenerationRequest) string {
	var b strings.Builder
	switch req.Type {
	case domain.TypeExplain:
		fmt.Fprintf(&b, "Create a detailed explanation of %q at %s level. Include key points and examples.", req.Topic, req.Difficulty)
	case domain.TypeFlashcards:
		fmt.Fprintf(&b, "Create %d flashcards about %q.", req.Amount, req.Topic)
	case domain.TypeQuiz:
		fmt.Fprintf(&b, "Create %d multiple-choice questions about %q at %s level.", req.Amount, req.Topic, req.Difficulty)
	case domain.TypePlan:
		fmt.Fprintf(&b, "Create a study plan for %q.", req.Topic)
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		fmt.Fprintf(&b, " Write all content in %s.", lang)
	}
	if style := strings.TrimSpace(req.ExplanationStyle); style != "" && req.Type == domain.TypeExplain {
		fmt.Fprintf(&b, " Use a %s explanation style.", style)
	}
	if req.ExamMode {
		b.WriteString(" Frame the content the way it would appear on an exam.")
	}
	if req.HintMode {
		b.WriteString(" Include a short hint wherever it helps.")
	}
	if req.CommonMistakesFocus {
		b.WriteString(" Emphasize common mistakes students make.")
	}
	if req.AddMiniReview {
		b.WriteString(" End with a brief review of the most important points.")
	}
	fmt.Fprintf(&b, " Return as JSON with: %s. Return only valid JSON, no markdown formatting.", contentSchemas[req.Type])
	return b.String()
}
