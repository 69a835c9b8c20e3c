package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/threshold.quest/internal/platform/branding"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/session"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/opening"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
	"github.com/louisbranch/threshold.quest/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// serverVersion identifies the MCP server version.
const serverVersion = "0.1.0"

// serverName identifies this MCP server to clients.
var serverName = branding.AppName + " MCP"

// Config configures the MCP server.
type Config struct {
	// Settings is the initial generator configuration. The zero value
	// selects the static provider.
	Settings settings.Settings
	// GenerationTimeout bounds each turn generation; non-positive means
	// the platform default.
	GenerationTimeout time.Duration
}

// Server hosts the MCP server around an in-process adventure engine.
type Server struct {
	mcpServer *mcp.Server
	manager   *session.Manager
}

// New builds the adventure engine from config and binds tool and resource
// handlers to it.
func New(cfg Config) (*Server, error) {
	store, err := settings.NewStore(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("configure generator: %w", err)
	}
	manager := session.NewManager(opening.Scene{}, store, cfg.GenerationTimeout)
	return newServer(manager, store), nil
}

// newServer creates MCP tool/resource handler bindings once around an
// existing engine.
func newServer(manager *session.Manager, store *settings.Store) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})

	notify := func(ctx context.Context, uri string) {
		if strings.TrimSpace(uri) == "" {
			return
		}
		if ctx == nil {
			ctx = context.Background()
		}
		if err := mcpServer.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
			log.Printf("mcp resource updated notify failed: uri=%s err=%v", uri, err)
		}
	}

	mcp.AddTool(mcpServer, domain.AdventureStartTool(), domain.AdventureStartHandler(manager, notify))
	mcp.AddTool(mcpServer, domain.AdventureSubmitTool(), domain.AdventureSubmitHandler(manager, notify))
	mcp.AddTool(mcpServer, domain.AdventureCurrentTool(), domain.AdventureCurrentHandler(manager))
	mcp.AddTool(mcpServer, domain.AdventureNavigateTool(), domain.AdventureNavigateHandler(manager))
	mcp.AddTool(mcpServer, domain.AdventureEndTool(), domain.AdventureEndHandler(manager, notify))
	mcp.AddTool(mcpServer, domain.SettingsGetTool(), domain.SettingsGetHandler(store))
	mcp.AddTool(mcpServer, domain.SettingsSetTool(), domain.SettingsSetHandler(store))
	mcpServer.AddResourceTemplate(domain.AdventureTurnsResourceTemplate(), domain.AdventureTurnsResourceHandler(manager))

	return &Server{mcpServer: mcpServer, manager: manager}
}

// resourceSubscribeHandler accepts resource subscriptions with a valid URI.
// Updates for subscribed turn histories arrive through the notifier bound to
// the mutating tools.
func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// resourceUnsubscribeHandler accepts resource unsubscriptions with a valid URI.
func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}
