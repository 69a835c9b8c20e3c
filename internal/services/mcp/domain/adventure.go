package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/session"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TurnPayload represents one committed turn in MCP tool output.
type TurnPayload struct {
	Sequence  int               `json:"sequence" jsonschema:"zero-based turn number; the opening turn is 0"`
	Action    string            `json:"action,omitempty" jsonschema:"player action that produced the turn; empty for the opening turn"`
	Narrative string            `json:"narrative" jsonschema:"story text committed for the turn"`
	Choices   []string          `json:"choices,omitempty" jsonschema:"suggested next actions; only the newest turn's choices are actionable"`
	Snapshot  map[string]string `json:"snapshot,omitempty" jsonschema:"named game attributes as of the turn, such as time and location"`
}

// TurnView describes the turn in view and its position in the history.
type TurnView struct {
	Turn   TurnPayload `json:"turn" jsonschema:"the turn in view"`
	Cursor int         `json:"cursor" jsonschema:"zero-based index of the turn in view"`
	Count  int         `json:"count" jsonschema:"number of committed turns"`
	Latest bool        `json:"latest" jsonschema:"whether the view sits on the newest turn; actions only resolve from there"`
}

// AdventureStartInput represents the MCP tool input for starting an adventure.
type AdventureStartInput struct{}

// AdventureStartResult represents the MCP tool output for starting an adventure.
type AdventureStartResult struct {
	SessionID string `json:"session_id" jsonschema:"adventure session identifier"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 timestamp when the session was created"`
	TurnView
}

// AdventureStartTool defines the MCP tool schema for starting an adventure.
func AdventureStartTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "adventure_start",
		Description: "Starts a new adventure session and returns its opening turn.",
	}
}

// AdventureStartHandler executes an adventure start request.
func AdventureStartHandler(manager *session.Manager, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[AdventureStartInput, AdventureStartResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ AdventureStartInput) (*mcp.CallToolResult, AdventureStartResult, error) {
		sess, err := manager.Create(ctx)
		if err != nil {
			return nil, AdventureStartResult{}, toolError("start adventure", err)
		}

		view, err := turnView(sess)
		if err != nil {
			return nil, AdventureStartResult{}, err
		}

		NotifyResourceUpdates(ctx, notify, TurnsResourceURI(sess.ID))
		return nil, AdventureStartResult{
			SessionID: sess.ID,
			CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
			TurnView:  view,
		}, nil
	}
}

// AdventureEndInput represents the MCP tool input for ending an adventure.
type AdventureEndInput struct {
	SessionID string `json:"session_id" jsonschema:"adventure session identifier"`
}

// AdventureEndResult represents the MCP tool output for ending an adventure.
type AdventureEndResult struct {
	SessionID string `json:"session_id" jsonschema:"adventure session identifier"`
	Ended     bool   `json:"ended" jsonschema:"always true; ending is idempotent"`
}

// AdventureEndTool defines the MCP tool schema for ending an adventure.
func AdventureEndTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "adventure_end",
		Description: "Ends an adventure session. Ending an unknown or already-ended session is a no-op.",
	}
}

// AdventureEndHandler executes an adventure end request.
func AdventureEndHandler(manager *session.Manager, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[AdventureEndInput, AdventureEndResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AdventureEndInput) (*mcp.CallToolResult, AdventureEndResult, error) {
		sessionID := strings.TrimSpace(input.SessionID)
		if sessionID == "" {
			return nil, AdventureEndResult{}, fmt.Errorf("session_id is required")
		}

		manager.Destroy(sessionID)

		NotifyResourceUpdates(ctx, notify, TurnsResourceURI(sessionID))
		return nil, AdventureEndResult{SessionID: sessionID, Ended: true}, nil
	}
}

// turnView reads the session's current position into tool output shape.
func turnView(sess *session.Session) (TurnView, error) {
	record, ok := sess.Current()
	if !ok {
		return TurnView{}, fmt.Errorf("session %s has no turns", sess.ID)
	}
	cursor, _ := sess.Cursor()
	return TurnView{
		Turn:   turnPayload(record),
		Cursor: cursor,
		Count:  sess.Turns(),
		Latest: sess.IsLatest(),
	}, nil
}

func turnPayload(record turn.Record) TurnPayload {
	return TurnPayload{
		Sequence:  record.Sequence,
		Action:    record.Action,
		Narrative: record.Narrative,
		Choices:   record.Choices,
		Snapshot:  record.Snapshot,
	}
}

// toolError keeps the engine's stable failure code in the error text so MCP
// clients can branch on it.
func toolError(stage string, err error) error {
	var fail *apperrors.Error
	if errors.As(err, &fail) {
		return fmt.Errorf("%s: %s: %s", stage, fail.Code, fail.Message)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
