// Package adventure parses bridge daemon flags and starts the engine runtime.
package adventure

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/threshold.quest/internal/platform/cmd"
	server "github.com/louisbranch/threshold.quest/internal/services/adventure/app"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/generator"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
)

// Config holds adventure daemon configuration.
type Config struct {
	HTTPAddr          string        `env:"THRESHOLD_QUEST_HTTP_ADDR"          envDefault:"localhost:8090"`
	Provider          string        `env:"THRESHOLD_QUEST_PROVIDER"           envDefault:"static"`
	ModelAddr         string        `env:"THRESHOLD_QUEST_MODEL_ADDR"         envDefault:"192.168.0.100:11434"`
	Model             string        `env:"THRESHOLD_QUEST_MODEL"              envDefault:"qwen3:8b"`
	OpenAIBaseURL     string        `env:"THRESHOLD_QUEST_OPENAI_BASE_URL"`
	OpenAIAPIKey      string        `env:"THRESHOLD_QUEST_OPENAI_API_KEY"`
	GenerationTimeout time.Duration `env:"THRESHOLD_QUEST_GENERATION_TIMEOUT" envDefault:"300s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "bridge listen address")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "generation backend: static, ollama or openai")
	fs.StringVar(&cfg.ModelAddr, "model-addr", cfg.ModelAddr, "ollama server address")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "model name")
	fs.DurationVar(&cfg.GenerationTimeout, "generation-timeout", cfg.GenerationTimeout, "timeout per turn generation")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Settings maps the daemon configuration onto generator settings.
func (c Config) Settings() settings.Settings {
	return settings.Settings{
		Provider: generator.Provider(c.Provider),
		Address:  c.ModelAddr,
		Model:    c.Model,
		BaseURL:  c.OpenAIBaseURL,
		APIKey:   c.OpenAIAPIKey,
	}
}

// Run starts the adventure bridge.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAdventure, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:          cfg.HTTPAddr,
			Settings:          cfg.Settings(),
			GenerationTimeout: cfg.GenerationTimeout,
		})
	})
}
