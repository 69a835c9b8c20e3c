package generator

import (
	"errors"
	"testing"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
)

func TestNewDefaultsToStatic(t *testing.T) {
	gen, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := gen.(*Static); !ok {
		t.Fatalf("New() = %T, want *Static", gen)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	gen, err := New(Config{Provider: ProviderOllama})
	if err != nil {
		t.Fatalf("New(ollama) error = %v", err)
	}
	if _, ok := gen.(*Ollama); !ok {
		t.Fatalf("New(ollama) = %T, want *Ollama", gen)
	}

	gen, err = New(Config{Provider: ProviderOpenAI, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New(openai) error = %v", err)
	}
	if _, ok := gen.(*OpenAI); !ok {
		t.Fatalf("New(openai) = %T, want *OpenAI", gen)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "carrier-pigeon"})
	if err == nil {
		t.Fatal("New() with an unknown provider succeeded, want error")
	}
	if !errors.Is(err, apperrors.New(apperrors.CodeInvalidArgument, "")) {
		t.Fatalf("New() error = %v, want %s", err, apperrors.CodeInvalidArgument)
	}
}
