// Package play parses terminal client flags and starts the TUI.
package play

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/threshold.quest/internal/platform/cmd"
	playapp "github.com/louisbranch/threshold.quest/internal/services/play/app"
)

// Config holds terminal client configuration.
type Config struct {
	BridgeURL string `env:"THRESHOLD_QUEST_BRIDGE_URL" envDefault:"http://localhost:8090"`
	Locale    string `env:"THRESHOLD_QUEST_LOCALE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.BridgeURL, "bridge-url", cfg.BridgeURL, "adventure bridge base URL")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "interface language (BCP 47 tag)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the terminal client.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePlay, func(ctx context.Context) error {
		return playapp.Run(ctx, playapp.Config{
			BridgeURL: cfg.BridgeURL,
			Locale:    cfg.Locale,
		})
	})
}
