// Package client is the Go client for the adventure bridge. It speaks the
// bridge's HTTP surface for request/response calls and its WebSocket
// surface for streamed turn generation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
)

// Client talks to one adventure bridge.
type Client struct {
	baseURL string
	locale  string
	http    *http.Client
}

// New creates a bridge client. locale is sent as Accept-Language on every
// request and may be empty; a nil httpClient uses http.DefaultClient.
func New(baseURL, locale string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		locale:  strings.TrimSpace(locale),
		http:    httpClient,
	}
}

// Session identifies one adventure on the bridge.
type Session struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// Turn is one committed turn as the bridge reports it.
type Turn struct {
	Sequence  int               `json:"sequence"`
	Action    string            `json:"action,omitempty"`
	Narrative string            `json:"narrative"`
	Choices   []string          `json:"choices,omitempty"`
	Snapshot  map[string]string `json:"snapshot,omitempty"`
}

// Record converts the wire turn into the domain record type.
func (t Turn) Record() turn.Record {
	record := turn.NewRecord(t.Action, t.Narrative, t.Choices, t.Snapshot)
	record.Sequence = t.Sequence
	return record
}

// TurnView is a turn together with its position in the session history.
type TurnView struct {
	Turn   Turn `json:"turn"`
	Cursor int  `json:"cursor"`
	Count  int  `json:"count"`
	Latest bool `json:"latest"`
}

// Started is the bridge's answer to session creation.
type Started struct {
	Session Session `json:"session"`
	TurnView
}

type actionBody struct {
	Action string `json:"action"`
}

type navigateBody struct {
	Index int `json:"index"`
}

type wireError struct {
	Error struct {
		Code      string            `json:"code"`
		Message   string            `json:"message"`
		Retryable bool              `json:"retryable"`
		Details   map[string]string `json:"details"`
	} `json:"error"`
}

// Health checks the bridge liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/up", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("bridge health returned status %d", status)
	}
	return nil
}

// CreateSession starts a new adventure and returns its opening turn.
func (c *Client) CreateSession(ctx context.Context) (Started, error) {
	var started Started
	if _, err := c.do(ctx, http.MethodPost, "/v1/sessions", nil, &started); err != nil {
		return Started{}, err
	}
	return started, nil
}

// CurrentTurn returns the turn in view. The bool is false when the session
// has no turns.
func (c *Client) CurrentTurn(ctx context.Context, sessionID string) (TurnView, bool, error) {
	var view TurnView
	status, err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/turns/current", nil, &view)
	if err != nil {
		return TurnView{}, false, err
	}
	if status == http.StatusNoContent {
		return TurnView{}, false, nil
	}
	return view, true, nil
}

// Navigate moves the view to the turn at index.
func (c *Client) Navigate(ctx context.Context, sessionID string, index int) (TurnView, error) {
	var view TurnView
	if _, err := c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/turns/navigate", navigateBody{Index: index}, &view); err != nil {
		return TurnView{}, err
	}
	return view, nil
}

// SubmitAction submits a player action and blocks until the turn commits
// or fails. Use Stream to observe partial events while generating.
func (c *Client) SubmitAction(ctx context.Context, sessionID, action string) (TurnView, error) {
	var view TurnView
	if _, err := c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/actions", actionBody{Action: action}, &view); err != nil {
		return TurnView{}, err
	}
	return view, nil
}

// EndSession destroys the session. Ending an unknown or already-ended
// session is not an error.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil, nil)
	return err
}

// Settings returns the bridge's generator settings.
func (c *Client) Settings(ctx context.Context) (settings.Settings, error) {
	var current settings.Settings
	if _, err := c.do(ctx, http.MethodGet, "/v1/settings", nil, &current); err != nil {
		return settings.Settings{}, err
	}
	return current, nil
}

// UpdateSettings replaces the bridge's generator settings and returns the
// stored value.
func (c *Client) UpdateSettings(ctx context.Context, next settings.Settings) (settings.Settings, error) {
	var stored settings.Settings
	if _, err := c.do(ctx, http.MethodPut, "/v1/settings", next, &stored); err != nil {
		return settings.Settings{}, err
	}
	return stored, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dst any) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build bridge request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.locale != "" {
		req.Header.Set("Accept-Language", c.locale)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("bridge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, apiError(resp)
	}
	if dst != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return resp.StatusCode, fmt.Errorf("decode bridge response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// apiError rebuilds the bridge's error envelope as a domain error so
// callers can match on codes the same way they do in-process.
func apiError(resp *http.Response) error {
	var envelope wireError
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
		return apperrors.New(apperrors.CodeInternal, fmt.Sprintf("bridge returned %s", resp.Status))
	}
	return apperrors.WithMetadata(
		apperrors.Code(envelope.Error.Code),
		envelope.Error.Message,
		envelope.Error.Details,
	)
}
