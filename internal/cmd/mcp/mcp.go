// Package mcp parses MCP command flags and starts the stdio server.
package mcp

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/threshold.quest/internal/platform/cmd"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/generator"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
	"github.com/louisbranch/threshold.quest/internal/services/mcp/service"
)

// Config holds MCP command configuration. The MCP server embeds the
// engine in-process, so it takes the same generator settings as the
// adventure daemon.
type Config struct {
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
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "generation backend: static, ollama or openai")
	fs.StringVar(&cfg.ModelAddr, "model-addr", cfg.ModelAddr, "ollama server address")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "model name")
	fs.DurationVar(&cfg.GenerationTimeout, "generation-timeout", cfg.GenerationTimeout, "timeout per turn generation")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Settings maps the command configuration onto generator settings.
func (c Config) Settings() settings.Settings {
	return settings.Settings{
		Provider: generator.Provider(c.Provider),
		Address:  c.ModelAddr,
		Model:    c.Model,
		BaseURL:  c.OpenAIBaseURL,
		APIKey:   c.OpenAIAPIKey,
	}
}

// Run starts the MCP server on stdio.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return service.Run(ctx, service.Config{
			Settings:          cfg.Settings(),
			GenerationTimeout: cfg.GenerationTimeout,
		})
	})
}
