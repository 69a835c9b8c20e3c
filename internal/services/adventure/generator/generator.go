// Package generator turns player actions into adventure turns.
//
// Three backends are available: a static offline backend that needs no
// model server, an Ollama chat backend that streams narrative and drives
// game state through tools, and an OpenAI-compatible streaming backend.
// Backends report progress through turn.EmitFunc; the returned Result is
// the only payload a caller may commit.
package generator

import (
	"context"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

// Provider selects a generation backend.
type Provider string

const (
	ProviderStatic Provider = "static"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

const (
	// DefaultAddress is the Ollama host:port used when none is configured.
	DefaultAddress = "192.168.0.100:11434"
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "qwen3:8b"
	// DefaultPromptBudget caps the assembled prompt, in tokens. History
	// beyond the budget is dropped oldest first.
	DefaultPromptBudget = 6144
)

// Request describes one turn to generate.
type Request struct {
	SessionID string
	// Action is the trimmed player action for the new turn.
	Action string
	// History holds the committed records, oldest first. The last entry
	// is the turn the player acted from.
	History []turn.Record
	// Snapshot is the game state the action was taken in.
	Snapshot map[string]string
}

// Result is the payload of a successful generation.
type Result struct {
	Narrative string
	Choices   []string
	Snapshot  map[string]string
}

// Generator produces one turn per call.
//
// Implementations emit observational partial events through emit while
// working and must never emit a terminal event; ending the stream is the
// caller's job once the result is committed or the submission fails.
type Generator interface {
	GenerateTurn(ctx context.Context, req Request, emit turn.EmitFunc) (Result, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Provider Provider
	// Address is the Ollama host:port. Ignored by other providers.
	Address string
	// Model names the chat model for the ollama and openai providers.
	Model string
	// BaseURL overrides the OpenAI endpoint, for compatible servers.
	BaseURL string
	// APIKey authenticates the openai provider.
	APIKey string
	// PromptBudget caps the prompt size in tokens. Zero means
	// DefaultPromptBudget.
	PromptBudget int
}

// New builds the backend cfg selects. An empty provider means static.
func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case ProviderStatic, "":
		return NewStatic(), nil
	case ProviderOllama:
		return NewOllama(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	}
	return nil, apperrors.WithMetadata(
		apperrors.CodeInvalidArgument,
		"unknown generator provider",
		map[string]string{"Provider": string(cfg.Provider)},
	)
}
