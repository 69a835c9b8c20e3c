// Package settings holds the runtime generator configuration and the
// backend built from it.
package settings

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/generator"
)

// Settings is the player-adjustable generator configuration.
type Settings struct {
	Provider generator.Provider `json:"provider"`
	Address  string             `json:"address"`
	Model    string             `json:"model"`
	BaseURL  string             `json:"base_url,omitempty"`
	APIKey   string             `json:"api_key,omitempty"`
}

func (s Settings) normalized() Settings {
	s.Provider = generator.Provider(strings.TrimSpace(string(s.Provider)))
	if s.Provider == "" {
		s.Provider = generator.ProviderStatic
	}
	s.Address = strings.TrimSpace(s.Address)
	s.Model = strings.TrimSpace(s.Model)
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	return s
}

func (s Settings) validate() error {
	switch s.Provider {
	case generator.ProviderStatic:
	case generator.ProviderOllama:
		if s.Address == "" {
			return invalidField("address", "ollama provider needs a server address")
		}
	case generator.ProviderOpenAI:
		if s.APIKey == "" && s.BaseURL == "" {
			return invalidField("api_key", "openai provider needs an api key or a base url")
		}
	default:
		return invalidField("provider", "unknown provider")
	}
	return nil
}

func (s Settings) config() generator.Config {
	return generator.Config{
		Provider: s.Provider,
		Address:  s.Address,
		Model:    s.Model,
		BaseURL:  s.BaseURL,
		APIKey:   s.APIKey,
	}
}

func invalidField(field, message string) error {
	return apperrors.WithMetadata(apperrors.CodeSettingsInvalid, message, map[string]string{"Field": field})
}

// Store guards the current settings and the generator backend built from
// them. The store itself generates turns by delegating to that backend,
// so a settings change takes effect on the next submission without
// touching live sessions.
type Store struct {
	mu      sync.RWMutex
	current Settings
	backend generator.Generator
}

var _ generator.Generator = (*Store)(nil)

// NewStore validates initial and builds its backend.
func NewStore(initial Settings) (*Store, error) {
	initial = initial.normalized()
	if err := initial.validate(); err != nil {
		return nil, err
	}
	backend, err := generator.New(initial.config())
	if err != nil {
		return nil, err
	}
	return &Store{current: initial, backend: backend}, nil
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Put validates next and swaps settings and backend together. On any
// error the previous configuration stays in place.
func (s *Store) Put(next Settings) error {
	next = next.normalized()
	if err := next.validate(); err != nil {
		return err
	}
	backend, err := generator.New(next.config())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = next
	s.backend = backend
	s.mu.Unlock()
	return nil
}

// GenerateTurn implements the generator interface by delegating to the
// backend for the current settings. The lock is released before the
// backend runs; in-flight generations finish on the backend they started
// with.
func (s *Store) GenerateTurn(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
	s.mu.RLock()
	backend := s.backend
	s.mu.RUnlock()
	return backend.GenerateTurn(ctx, req, emit)
}
