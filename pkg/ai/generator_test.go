package ai

import (
	"errors"
	"testing"
)

func TestNewGeneratorDefaultsToMock(t *testing.T) {
	gen, err := NewGenerator(Config{})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	if _, ok := gen.(*MockGenerator); !ok {
		t.Fatalf("expected mock generator, got %T", gen)
	}
}

func TestNewGeneratorUnknownProvider(t *testing.T) {
	if _, err := NewGenerator(Config{Provider: "anthropic"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewGeneratorMissingCredentials(t *testing.T) {
	if _, err := NewGenerator(Config{Provider: "openai"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("openai without key: got %v, want ErrNotConfigured", err)
	}
	if _, err := NewGenerator(Config{Provider: "gemini"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("gemini without key: got %v, want ErrNotConfigured", err)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := stripCodeFences(tc.in); got != tc.want {
			t.Fatalf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
