// Package scenario parses scenario command flags and runs a Lua script
// against a live bridge.
package scenario

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"time"

	entrypoint "github.com/louisbranch/threshold.quest/internal/platform/cmd"
	"github.com/louisbranch/threshold.quest/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	BridgeURL  string        `env:"THRESHOLD_QUEST_BRIDGE_URL"        envDefault:"http://localhost:8090"`
	Locale     string        `env:"THRESHOLD_QUEST_LOCALE"`
	Scenario   string        `env:"THRESHOLD_QUEST_SCENARIO_FILE"`
	Assertions bool          `env:"THRESHOLD_QUEST_SCENARIO_ASSERT"   envDefault:"true"`
	Verbose    bool          `env:"THRESHOLD_QUEST_SCENARIO_VERBOSE"`
	Timeout    time.Duration `env:"THRESHOLD_QUEST_SCENARIO_TIMEOUT"  envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.BridgeURL, "bridge-url", cfg.BridgeURL, "adventure bridge base URL")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "error message language (BCP 47 tag)")
	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}

	logger := log.New(errOut, "", 0)
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScenario, func(ctx context.Context) error {
		return scenario.RunFile(ctx, scenario.Config{
			BridgeURL:  cfg.BridgeURL,
			Locale:     cfg.Locale,
			Timeout:    cfg.Timeout,
			Assertions: mode,
			Verbose:    cfg.Verbose,
			Logger:     logger,
		}, cfg.Scenario)
	})
}
