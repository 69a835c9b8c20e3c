package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
	"golang.org/x/net/websocket"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// wsPeer serializes frame writes so submission goroutines and the read
// loop never interleave bytes on the wire.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

type wsSubmitPayload struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
}

type wsSessionRefPayload struct {
	SessionID string `json:"session_id"`
}

type wsNavigatePayload struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
}

type wsTextPayload struct {
	Text string `json:"text"`
}

type wsToolCallPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type wsToolResultPayload struct {
	Name   string            `json:"name"`
	Result map[string]string `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

type wsChoicesPayload struct {
	Choices []string `json:"choices"`
}

func (h *handler) registerWS(mux *http.ServeMux) {
	wsHandler := websocket.Handler(h.handleWSConn)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
}

func (h *handler) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	peer := newWSPeer(json.NewEncoder(conn))

	ctx := context.Background()
	locale := supportedLocales[0].String()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
		locale = localeForRequest(request)
	}

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "RATE_LIMITED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "adventure.start":
			h.handleStartFrame(ctx, peer, frame, locale)
		case "adventure.submit":
			h.handleSubmitFrame(ctx, peer, frame, locale)
		case "adventure.cancel":
			h.handleCancelFrame(peer, frame, locale)
		case "adventure.navigate":
			h.handleNavigateFrame(peer, frame, locale)
		case "adventure.current":
			h.handleCurrentFrame(peer, frame, locale)
		case "adventure.end":
			h.handleEndFrame(peer, frame)
		default:
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func (h *handler) handleStartFrame(ctx context.Context, peer *wsPeer, frame wsFrame, locale string) {
	sess, err := h.manager.Create(ctx)
	if err != nil {
		log.Printf("adventure: ws start failed: %v", err)
		writeWSDomainError(peer, frame.RequestID, err, locale)
		return
	}

	record, ok := sess.Current()
	if !ok {
		writeWSDomainError(peer, frame.RequestID,
			apperrors.New(apperrors.CodeInternal, "session created without an opening turn"), locale)
		return
	}

	log.Printf("adventure: ws session created id=%s", sess.ID)
	cursor, _ := sess.Cursor()
	_ = peer.writeFrame(wsFrame{
		Type:      "adventure.started",
		RequestID: frame.RequestID,
		Payload: mustJSON(sessionEnvelope{
			Session: sessionPayload{
				ID:        sess.ID,
				CreatedAt: sess.CreatedAt.Format(time.RFC3339),
			},
			Turn:   payloadForTurn(record),
			Cursor: cursor,
			Count:  sess.Turns(),
			Latest: sess.IsLatest(),
		}),
	})
}

// handleSubmitFrame runs the submission in its own goroutine so the read
// loop keeps serving navigation and cancel frames while a turn generates.
// Partial events stream as adventure.* frames; the goroutine writes the
// single terminal frame from Submit's outcome.
func (h *handler) handleSubmitFrame(ctx context.Context, peer *wsPeer, frame wsFrame, locale string) {
	var payload wsSubmitPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid submit payload")
		return
	}

	sess, err := h.manager.Get(strings.TrimSpace(payload.SessionID))
	if err != nil {
		writeWSDomainError(peer, frame.RequestID, err, locale)
		return
	}

	requestID := frame.RequestID
	go func() {
		record, err := sess.Submit(ctx, payload.Action, func(evt turn.Event) {
			writeEventFrame(peer, requestID, evt)
		})
		if err != nil {
			log.Printf("adventure: ws submit failed session=%s err=%v", sess.ID, err)
			writeWSDomainError(peer, requestID, err, locale)
			return
		}
		_ = peer.writeFrame(wsFrame{
			Type:      "adventure.turn_complete",
			RequestID: requestID,
			Payload:   mustJSON(envelopeFor(sess, record)),
		})
	}()
}

// handleCancelFrame aborts the session's in-flight generation. The
// submitting request observes the abort through its own terminal error
// frame, so cancel itself has no success reply.
func (h *handler) handleCancelFrame(peer *wsPeer, frame wsFrame, locale string) {
	var payload wsSessionRefPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid cancel payload")
		return
	}

	sess, err := h.manager.Get(strings.TrimSpace(payload.SessionID))
	if err != nil {
		writeWSDomainError(peer, frame.RequestID, err, locale)
		return
	}
	sess.Cancel()
}

func (h *handler) handleNavigateFrame(peer *wsPeer, frame wsFrame, locale string) {
	var payload wsNavigatePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid navigate payload")
		return
	}

	sess, err := h.manager.Get(strings.TrimSpace(payload.SessionID))
	if err != nil {
		writeWSDomainError(peer, frame.RequestID, err, locale)
		return
	}

	record, err := sess.Navigate(payload.Index)
	if err != nil {
		writeWSDomainError(peer, frame.RequestID, err, locale)
		return
	}
	_ = peer.writeFrame(wsFrame{
		Type:      "adventure.turn",
		RequestID: frame.RequestID,
		Payload:   mustJSON(envelopeFor(sess, record)),
	})
}

func (h *handler) handleCurrentFrame(peer *wsPeer, frame wsFrame, locale string) {
	var payload wsSessionRefPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid current payload")
		return
	}

	sess, err := h.manager.Get(strings.TrimSpace(payload.SessionID))
	if err != nil {
		writeWSDomainError(peer, frame.RequestID, err, locale)
		return
	}

	record, ok := sess.Current()
	if !ok {
		writeWSDomainError(peer, frame.RequestID,
			apperrors.New(apperrors.CodeInternal, "session has no turns"), locale)
		return
	}
	_ = peer.writeFrame(wsFrame{
		Type:      "adventure.turn",
		RequestID: frame.RequestID,
		Payload:   mustJSON(envelopeFor(sess, record)),
	})
}

func (h *handler) handleEndFrame(peer *wsPeer, frame wsFrame) {
	var payload wsSessionRefPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid end payload")
		return
	}

	sessionID := strings.TrimSpace(payload.SessionID)
	h.manager.Destroy(sessionID)
	_ = peer.writeFrame(wsFrame{
		Type:      "adventure.ended",
		RequestID: frame.RequestID,
		Payload:   mustJSON(wsSessionRefPayload{SessionID: sessionID}),
	})
}

// writeEventFrame relays one partial generation event to the client.
// Terminal event types never come from generators; anything unrecognized
// is dropped rather than guessed at.
func writeEventFrame(peer *wsPeer, requestID string, evt turn.Event) {
	switch evt.Type {
	case turn.EventTextChunk, turn.EventReasoningChunk:
		_ = peer.writeFrame(wsFrame{
			Type:      "adventure." + string(evt.Type),
			RequestID: requestID,
			Payload:   mustJSON(wsTextPayload{Text: evt.Text}),
		})
	case turn.EventToolCall:
		_ = peer.writeFrame(wsFrame{
			Type:      "adventure.tool_call",
			RequestID: requestID,
			Payload:   mustJSON(wsToolCallPayload{Name: evt.Tool, Arguments: evt.Arguments}),
		})
	case turn.EventToolResult:
		payload := wsToolResultPayload{Name: evt.Tool, Result: evt.Result}
		if evt.Err != nil {
			payload.Error = evt.Err.Error()
		}
		_ = peer.writeFrame(wsFrame{
			Type:      "adventure.tool_result",
			RequestID: requestID,
			Payload:   mustJSON(payload),
		})
	case turn.EventChoices:
		_ = peer.writeFrame(wsFrame{
			Type:      "adventure.choices",
			RequestID: requestID,
			Payload:   mustJSON(wsChoicesPayload{Choices: evt.Choices}),
		})
	}
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      "adventure.error",
		RequestID: requestID,
		Payload: mustJSON(errorEnvelope{
			Error: errorPayload{
				Code:      code,
				Message:   message,
				Retryable: apperrors.Code(code).Retryable(),
			},
		}),
	})
}

func writeWSDomainError(peer *wsPeer, requestID string, err error, locale string) {
	_ = peer.writeFrame(wsFrame{
		Type:      "adventure.error",
		RequestID: requestID,
		Payload:   mustJSON(errorEnvelope{Error: errorPayloadFor(err, locale)}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("adventure: marshal websocket frame payload failed: %v", err)
		return nil
	}
	return b
}
