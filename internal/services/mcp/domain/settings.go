package domain

import (
	"context"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/generator"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SettingsGetInput represents the MCP tool input for reading generator settings.
type SettingsGetInput struct{}

// SettingsResult represents generator settings in MCP tool output. The API
// key never leaves the process; only its presence is reported.
type SettingsResult struct {
	Provider  string `json:"provider" jsonschema:"generation backend: static, ollama, or openai"`
	Address   string `json:"address,omitempty" jsonschema:"ollama server host:port"`
	Model     string `json:"model,omitempty" jsonschema:"model name requested from the backend"`
	BaseURL   string `json:"base_url,omitempty" jsonschema:"OpenAI-compatible endpoint override"`
	APIKeySet bool   `json:"api_key_set" jsonschema:"whether an API key is configured"`
}

// SettingsGetTool defines the MCP tool schema for reading generator settings.
func SettingsGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "settings_get",
		Description: "Returns the current turn generator settings.",
	}
}

// SettingsGetHandler executes a settings read request.
func SettingsGetHandler(store *settings.Store) mcp.ToolHandlerFor[SettingsGetInput, SettingsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ SettingsGetInput) (*mcp.CallToolResult, SettingsResult, error) {
		return nil, settingsResult(store.Get()), nil
	}
}

// SettingsSetInput represents the MCP tool input for replacing generator settings.
type SettingsSetInput struct {
	Provider string `json:"provider" jsonschema:"generation backend: static, ollama, or openai; empty selects static"`
	Address  string `json:"address,omitempty" jsonschema:"ollama server host:port; required for the ollama provider"`
	Model    string `json:"model,omitempty" jsonschema:"model name to request; empty selects the platform default"`
	BaseURL  string `json:"base_url,omitempty" jsonschema:"OpenAI-compatible endpoint override"`
	APIKey   string `json:"api_key,omitempty" jsonschema:"API key for the openai provider"`
}

// SettingsSetTool defines the MCP tool schema for replacing generator settings.
func SettingsSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "settings_set",
		Description: "Replaces the turn generator settings. Takes effect on the next submission; live sessions keep their history.",
	}
}

// SettingsSetHandler executes a settings replacement request.
func SettingsSetHandler(store *settings.Store) mcp.ToolHandlerFor[SettingsSetInput, SettingsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SettingsSetInput) (*mcp.CallToolResult, SettingsResult, error) {
		next := settings.Settings{
			Provider: generator.Provider(input.Provider),
			Address:  input.Address,
			Model:    input.Model,
			BaseURL:  input.BaseURL,
			APIKey:   input.APIKey,
		}
		if err := store.Put(next); err != nil {
			return nil, SettingsResult{}, toolError("update settings", err)
		}
		return nil, settingsResult(store.Get()), nil
	}
}

func settingsResult(current settings.Settings) SettingsResult {
	return SettingsResult{
		Provider:  string(current.Provider),
		Address:   current.Address,
		Model:     current.Model,
		BaseURL:   current.BaseURL,
		APIKeySet: current.APIKey != "",
	}
}
