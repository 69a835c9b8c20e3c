package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/platform/id"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

// Wire mirrors of the bridge's WebSocket frames.
type streamFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type streamSubmitPayload struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
}

type streamTextPayload struct {
	Text string `json:"text"`
}

type streamToolCallPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type streamToolResultPayload struct {
	Name   string            `json:"name"`
	Result map[string]string `json:"result"`
	Error  string            `json:"error"`
}

type streamChoicesPayload struct {
	Choices []string `json:"choices"`
}

// Stream submits a player action over the bridge's WebSocket and returns
// a channel of the events observed while the turn generates. The channel
// delivers partial events in arrival order and ends with one terminal
// event: EventTurnComplete carrying the committed record, or EventError
// carrying the failure.
//
// A completed submission always commits the newest turn, so the terminal
// record's sequence is also the view cursor. Canceling ctx closes the
// connection, which aborts the in-flight generation on the bridge and
// closes the channel.
func (c *Client) Stream(ctx context.Context, sessionID, action string) (<-chan turn.Event, error) {
	requestID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("new stream request id: %w", err)
	}

	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	cfg, err := websocket.NewConfig(wsURL, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("configure stream connection: %w", err)
	}
	if c.locale != "" {
		cfg.Header = http.Header{}
		cfg.Header.Set("Accept-Language", c.locale)
	}

	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("dial bridge stream: %w", err)
	}

	payload, err := json.Marshal(streamSubmitPayload{SessionID: sessionID, Action: action})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("encode submit payload: %w", err)
	}
	submit := streamFrame{Type: "adventure.submit", RequestID: requestID, Payload: payload}
	if err := json.NewEncoder(conn).Encode(submit); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send submit frame: %w", err)
	}

	events := make(chan turn.Event)
	go pumpStream(ctx, conn, requestID, events)
	return events, nil
}

// pumpStream relays frames for one submission until a terminal event.
func pumpStream(ctx context.Context, conn *websocket.Conn, requestID string, events chan<- turn.Event) {
	defer close(events)
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	send := func(evt turn.Event) bool {
		select {
		case events <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}

	decoder := json.NewDecoder(conn)
	for {
		var frame streamFrame
		if err := decoder.Decode(&frame); err != nil {
			if ctx.Err() != nil {
				send(turn.Event{Type: turn.EventError, Err: ctx.Err()})
				return
			}
			send(turn.Event{Type: turn.EventError, Err: fmt.Errorf("read stream frame: %w", err)})
			return
		}
		if frame.RequestID != "" && frame.RequestID != requestID {
			continue
		}

		evt, terminal, err := eventForFrame(frame)
		if err != nil {
			send(turn.Event{Type: turn.EventError, Err: err})
			return
		}
		if evt == nil {
			continue
		}
		if !send(*evt) || terminal {
			return
		}
	}
}

// eventForFrame maps one wire frame onto a turn event. A nil event with a
// nil error means the frame is not part of the submission stream.
func eventForFrame(frame streamFrame) (*turn.Event, bool, error) {
	switch frame.Type {
	case "adventure.text_chunk", "adventure.reasoning_chunk":
		var payload streamTextPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, false, fmt.Errorf("decode %s payload: %w", frame.Type, err)
		}
		kind := turn.EventTextChunk
		if frame.Type == "adventure.reasoning_chunk" {
			kind = turn.EventReasoningChunk
		}
		return &turn.Event{Type: kind, Text: payload.Text}, false, nil

	case "adventure.tool_call":
		var payload streamToolCallPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, false, fmt.Errorf("decode tool call payload: %w", err)
		}
		return &turn.Event{Type: turn.EventToolCall, Tool: payload.Name, Arguments: payload.Arguments}, false, nil

	case "adventure.tool_result":
		var payload streamToolResultPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, false, fmt.Errorf("decode tool result payload: %w", err)
		}
		evt := turn.Event{Type: turn.EventToolResult, Tool: payload.Name, Result: payload.Result}
		if payload.Error != "" {
			evt.Err = errors.New(payload.Error)
		}
		return &evt, false, nil

	case "adventure.choices":
		var payload streamChoicesPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, false, fmt.Errorf("decode choices payload: %w", err)
		}
		return &turn.Event{Type: turn.EventChoices, Choices: payload.Choices}, false, nil

	case "adventure.turn_complete":
		var view TurnView
		if err := json.Unmarshal(frame.Payload, &view); err != nil {
			return nil, false, fmt.Errorf("decode committed turn payload: %w", err)
		}
		record := view.Turn.Record()
		return &turn.Event{Type: turn.EventTurnComplete, Turn: &record}, true, nil

	case "adventure.error":
		var envelope wireError
		if err := json.Unmarshal(frame.Payload, &envelope); err != nil {
			return nil, false, fmt.Errorf("decode error payload: %w", err)
		}
		rebuilt := apperrors.WithMetadata(
			apperrors.Code(envelope.Error.Code),
			envelope.Error.Message,
			envelope.Error.Details,
		)
		return &turn.Event{Type: turn.EventError, Err: rebuilt}, true, nil
	}

	// Frames for other requests on this connection are not ours to judge.
	return nil, false, nil
}
