package domain

import (
	"context"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AdventureSubmitInput represents the MCP tool input for submitting an action.
type AdventureSubmitInput struct {
	SessionID string `json:"session_id" jsonschema:"adventure session identifier"`
	Action    string `json:"action" jsonschema:"player action to resolve into the next turn"`
}

// AdventureSubmitResult represents the MCP tool output for submitting an action.
type AdventureSubmitResult struct {
	TurnView
}

// AdventureSubmitTool defines the MCP tool schema for submitting an action.
func AdventureSubmitTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "adventure_submit",
		Description: "Resolves a player action into the next turn. Blocks until generation completes; the view must sit on the newest turn.",
	}
}

// AdventureSubmitHandler executes an action submission.
func AdventureSubmitHandler(manager *session.Manager, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[AdventureSubmitInput, AdventureSubmitResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AdventureSubmitInput) (*mcp.CallToolResult, AdventureSubmitResult, error) {
		sess, err := manager.Get(input.SessionID)
		if err != nil {
			return nil, AdventureSubmitResult{}, toolError("submit action", err)
		}

		if _, err := sess.Submit(ctx, input.Action, nil); err != nil {
			return nil, AdventureSubmitResult{}, toolError("submit action", err)
		}

		view, err := turnView(sess)
		if err != nil {
			return nil, AdventureSubmitResult{}, err
		}

		NotifyResourceUpdates(ctx, notify, TurnsResourceURI(sess.ID))
		return nil, AdventureSubmitResult{TurnView: view}, nil
	}
}

// AdventureCurrentInput represents the MCP tool input for reading the current view.
type AdventureCurrentInput struct {
	SessionID string `json:"session_id" jsonschema:"adventure session identifier"`
}

// AdventureCurrentResult represents the MCP tool output for reading the current view.
type AdventureCurrentResult struct {
	TurnView
}

// AdventureCurrentTool defines the MCP tool schema for reading the current view.
func AdventureCurrentTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "adventure_current",
		Description: "Returns the turn in view and its position in the session history.",
	}
}

// AdventureCurrentHandler executes a current view request.
func AdventureCurrentHandler(manager *session.Manager) mcp.ToolHandlerFor[AdventureCurrentInput, AdventureCurrentResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AdventureCurrentInput) (*mcp.CallToolResult, AdventureCurrentResult, error) {
		sess, err := manager.Get(input.SessionID)
		if err != nil {
			return nil, AdventureCurrentResult{}, toolError("read current turn", err)
		}

		view, err := turnView(sess)
		if err != nil {
			return nil, AdventureCurrentResult{}, err
		}
		return nil, AdventureCurrentResult{TurnView: view}, nil
	}
}

// AdventureNavigateInput represents the MCP tool input for navigating history.
type AdventureNavigateInput struct {
	SessionID string `json:"session_id" jsonschema:"adventure session identifier"`
	Index     int    `json:"index" jsonschema:"zero-based turn index to move the view to"`
}

// AdventureNavigateResult represents the MCP tool output for navigating history.
type AdventureNavigateResult struct {
	TurnView
}

// AdventureNavigateTool defines the MCP tool schema for navigating history.
func AdventureNavigateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "adventure_navigate",
		Description: "Moves the view to a committed turn by index. Navigation is read-only; submitting again requires the newest turn.",
	}
}

// AdventureNavigateHandler executes a history navigation request.
func AdventureNavigateHandler(manager *session.Manager) mcp.ToolHandlerFor[AdventureNavigateInput, AdventureNavigateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AdventureNavigateInput) (*mcp.CallToolResult, AdventureNavigateResult, error) {
		sess, err := manager.Get(input.SessionID)
		if err != nil {
			return nil, AdventureNavigateResult{}, toolError("navigate history", err)
		}

		if _, err := sess.Navigate(input.Index); err != nil {
			return nil, AdventureNavigateResult{}, toolError("navigate history", err)
		}

		view, err := turnView(sess)
		if err != nil {
			return nil, AdventureNavigateResult{}, err
		}
		return nil, AdventureNavigateResult{TurnView: view}, nil
	}
}
