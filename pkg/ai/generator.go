package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"studypilot/pkg/domain"
)

// Sentinel errors distinguishing a misconfigured provider from a failed or
// malformed upstream call. Both surface to clients as server errors.
var (
	ErrNotConfigured = errors.New("provider not configured")
	ErrUpstream      = errors.New("provider request failed")
)

// GenerationRequest describes the study content to synthesize.
// Topic is free text; the remaining fields shape the output.
type GenerationRequest struct {
	Type                domain.GenerationType `json:"type"`
	Topic               string                `json:"topic"`
	Difficulty          string                `json:"difficulty,omitempty"`
	Language            string                `json:"language,omitempty"`
	Amount              int                   `json:"amount,omitempty"`
	Subject             string                `json:"subject,omitempty"`
	ExamMode            bool                  `json:"examMode,omitempty"`
	ExplanationStyle    string                `json:"explanationStyle,omitempty"`
	HintMode            bool                  `json:"hintMode,omitempty"`
	CommonMistakesFocus bool                  `json:"commonMistakesFocus,omitempty"`
	AddMiniReview       bool                  `json:"addMiniReview,omitempty"`
}

// GenerationResponse pairs the requested type with content that validates
// against that type's shape.
type GenerationResponse struct {
	Type    domain.GenerationType `json:"type"`
	Content json.RawMessage       `json:"content"`
}

// Generator turns a generation request into structured study content.
// All providers (mock, OpenAI-compatible, Gemini) implement this interface.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error)
}

// Config selects and credentials a provider. It is read once at startup;
// providers never consult the environment at call time.
type Config struct {
	Provider string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	GeminiAPIKey string
	GeminiModel  string
}

// NewGenerator builds the provider named by cfg.Provider. An empty name
// selects the offline mock; an unknown name is a startup error.
func NewGenerator(cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "mock":
		return NewMockGenerator(defaultMockDelay), nil
	case "openai":
		return NewOpenAIGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "gemini":
		return NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown ai provider: %q", cfg.Provider)
	}
}

const (
	defaultDifficulty = "medium"
	defaultAmount     = 10
)

// withDefaults fills difficulty and amount the way the original client did.
// Amounts outside the UI's 1-50 range are passed through untouched.
func (r GenerationRequest) withDefaults() GenerationRequest {
	if strings.TrimSpace(r.Difficulty) == "" {
		r.Difficulty = defaultDifficulty
	}
	if r.Amount <= 0 {
		r.Amount = defaultAmount
	}
	return r
}
