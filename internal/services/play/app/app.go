// Package play is the interactive terminal client for the adventure
// bridge. It renders the turn in view, streams generation live over the
// bridge's WebSocket, and drives navigation with a handful of keys.
package play

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/threshold.quest/internal/platform/i18n/catalog"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/client"
)

// Config parameterizes the terminal client.
type Config struct {
	// BridgeURL is the adventure bridge base URL.
	BridgeURL string
	// Locale selects the interface language. Empty means en-US.
	Locale string
}

// Run starts the terminal client and blocks until the player quits or ctx
// is canceled.
func Run(ctx context.Context, config Config) error {
	m, err := newModel(config)
	if err != nil {
		return fmt.Errorf("init terminal client: %w", err)
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("run terminal client: %w", err)
	}
	return nil
}

func newModel(config Config) (model, error) {
	base := strings.TrimSpace(config.BridgeURL)
	if base == "" {
		return model{}, errors.New("bridge url is required")
	}
	locale := strings.TrimSpace(config.Locale)
	if locale == "" {
		locale = catalog.BaseLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return model{}, fmt.Errorf("parse locale %q: %w", locale, err)
	}

	return model{
		th:        defaultTheme(),
		client:    client.New(base, locale, nil),
		print:     message.NewPrinter(tag),
		choiceIdx: -1,
	}, nil
}
