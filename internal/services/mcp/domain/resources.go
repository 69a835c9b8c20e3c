package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TurnListPayload represents the MCP resource payload for a turn history.
type TurnListPayload struct {
	SessionID string        `json:"session_id"`
	Turns     []TurnPayload `json:"turns"`
}

// AdventureTurnsResourceTemplate defines the MCP resource template for turn histories.
func AdventureTurnsResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "adventure_turns",
		Title:       "Adventure turns",
		Description: "Readable listing of all committed turns for a session. URI format: adventure://{session_id}/turns",
		MIMEType:    "application/json",
		URITemplate: "adventure://{session_id}/turns",
	}
}

// AdventureTurnsResourceHandler returns a readable turn history resource.
func AdventureTurnsResourceHandler(manager *session.Manager) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if manager == nil {
			return nil, fmt.Errorf("turns resource manager is not configured")
		}
		if req == nil || req.Params == nil || req.Params.URI == "" {
			return nil, fmt.Errorf("session ID is required; use URI format adventure://{session_id}/turns")
		}
		uri := req.Params.URI

		sessionID, err := parseSessionIDFromResourceURI(uri, "turns")
		if err != nil {
			return nil, fmt.Errorf("parse session ID from URI: %w", err)
		}

		sess, err := manager.Get(sessionID)
		if err != nil {
			return nil, toolError("read turns", err)
		}

		payload := TurnListPayload{SessionID: sess.ID}
		for _, record := range sess.History() {
			payload.Turns = append(payload.Turns, turnPayload(record))
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal turn list: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// parseSessionIDFromResourceURI extracts the session ID from a URI of the form
// adventure://{session_id}/{resourceType}. It parses URIs of the expected
// format but requires an actual session ID.
func parseSessionIDFromResourceURI(uri, resourceType string) (string, error) {
	prefix := "adventure://"
	suffix := "/" + resourceType

	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("URI must start with %q", prefix)
	}
	if !strings.HasSuffix(uri, suffix) {
		return "", fmt.Errorf("URI must end with %q", suffix)
	}

	sessionID := strings.TrimPrefix(uri, prefix)
	sessionID = strings.TrimSuffix(sessionID, suffix)
	sessionID = strings.TrimSpace(sessionID)

	if sessionID == "" {
		return "", fmt.Errorf("session ID is required in URI")
	}

	// Reject the placeholder value from the template itself.
	if sessionID == "_" {
		return "", fmt.Errorf("session ID placeholder '_' is not a valid session ID")
	}

	return sessionID, nil
}
