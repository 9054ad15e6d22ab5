package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"studypilot/pkg/domain"
)

func newOpenAIStub(t *testing.T, handler http.HandlerFunc) *OpenAIGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gen, err := NewOpenAIGenerator(srv.URL, "test-key", "test-model")
	if err != nil {
		t.Fatalf("new openai generator: %v", err)
	}
	return gen
}

func TestOpenAIGeneratorParsesStructuredReply(t *testing.T) {
	reply := FlashcardSet{
		Title: "Flashcards: Mitosis",
		Cards: []Flashcard{{Front: "What is mitosis?", Back: "Cell division producing identical daughter cells."}},
	}
	gen := newOpenAIStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var req oaiChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		content, _ := json.Marshal(reply)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": string(content)}},
			},
		})
	})

	resp, err := gen.Generate(context.Background(), GenerationRequest{Type: domain.TypeFlashcards, Topic: "Mitosis", Amount: 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var set FlashcardSet
	if err := json.Unmarshal(resp.Content, &set); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	if set.Title != reply.Title || len(set.Cards) != 1 {
		t.Fatalf("unexpected content: %+v", set)
	}
}

func TestOpenAIGeneratorUpstreamHTTPError(t *testing.T) {
	gen := newOpenAIStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "model overloaded"}})
	})
	_, err := gen.Generate(context.Background(), GenerationRequest{Type: domain.TypeQuiz, Topic: "Gravity"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("got %v, want ErrUpstream", err)
	}
}

func TestOpenAIGeneratorRejectsNonJSONReply(t *testing.T) {
	gen := newOpenAIStub(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Sure! Here are your flashcards:"}},
			},
		})
	})
	_, err := gen.Generate(context.Background(), GenerationRequest{Type: domain.TypeFlashcards, Topic: "Mitosis"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("got %v, want ErrUpstream", err)
	}
}

func TestOpenAIGeneratorRejectsWrongShape(t *testing.T) {
	// Valid JSON, but a quiz question with only two options.
	gen := newOpenAIStub(t, func(w http.ResponseWriter, _ *http.Request) {
		content := `{"title":"Quiz: Gravity","questions":[{"question":"Q?","options":["a","b"],"correctAnswer":0,"explanation":"e"}]}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})
	_, err := gen.Generate(context.Background(), GenerationRequest{Type: domain.TypeQuiz, Topic: "Gravity"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("got %v, want ErrUpstream", err)
	}
}
