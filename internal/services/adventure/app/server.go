// Package server hosts the adventure bridge: the local HTTP and WebSocket
// surface that desktop and terminal clients drive the engine through.
//
// The bridge is transport only. Session lifecycle, turn history, and
// generation all live in the domain packages; handlers translate wire
// payloads to domain calls and domain errors to localized envelopes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	errori18n "github.com/louisbranch/threshold.quest/internal/platform/errors/i18n"
	"github.com/louisbranch/threshold.quest/internal/platform/telemetry"
	"github.com/louisbranch/threshold.quest/internal/platform/timeouts"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/session"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/opening"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
	"golang.org/x/text/language"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	maxRequestBodyBytes = 16 * 1024
)

// Config defines the inputs for the adventure bridge process.
type Config struct {
	HTTPAddr          string
	Settings          settings.Settings
	GenerationTimeout time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the bridge HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// handler carries the domain collaborators every route needs.
type handler struct {
	manager  *session.Manager
	settings *settings.Store
}

type sessionPayload struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type turnPayload struct {
	Sequence  int               `json:"sequence"`
	Action    string            `json:"action,omitempty"`
	Narrative string            `json:"narrative"`
	Choices   []string          `json:"choices,omitempty"`
	Snapshot  map[string]string `json:"snapshot,omitempty"`
}

// turnEnvelope frames a turn with its position in the history so clients
// can render "turn N of M" without a second round trip.
type turnEnvelope struct {
	Turn   turnPayload `json:"turn"`
	Cursor int         `json:"cursor"`
	Count  int         `json:"count"`
	Latest bool        `json:"latest"`
}

type sessionEnvelope struct {
	Session sessionPayload `json:"session"`
	Turn    turnPayload    `json:"turn"`
	Cursor  int            `json:"cursor"`
	Count   int            `json:"count"`
	Latest  bool           `json:"latest"`
}

type actionRequest struct {
	Action string `json:"action"`
}

type navigateRequest struct {
	Index int `json:"index"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Details   map[string]string `json:"details,omitempty"`
}

// supportedLocales lists the locales the bridge can answer in. The first
// entry is the fallback.
var supportedLocales = []language.Tag{
	language.AmericanEnglish,
	language.BrazilianPortuguese,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// localeForRequest picks a response locale from the Accept-Language header.
func localeForRequest(r *http.Request) string {
	if r == nil {
		return supportedLocales[0].String()
	}
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return supportedLocales[0].String()
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return supportedLocales[0].String()
	}
	_, index, _ := localeMatcher.Match(tags...)
	return supportedLocales[index].String()
}

// errorPayloadFor renders a domain error as a wire envelope with a
// catalog-localized message. Non-domain errors map to INTERNAL.
func errorPayloadFor(err error, locale string) errorPayload {
	code := apperrors.CodeInternal
	var metadata map[string]string
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		code = appErr.Code
		metadata = appErr.Metadata
	}
	catalog := errori18n.GetCatalog(locale)
	return errorPayload{
		Code:      string(code),
		Message:   catalog.Format(string(code), metadata),
		Retryable: code.Retryable(),
		Details:   metadata,
	}
}

func httpStatusFor(err error) int {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code.HTTPStatus()
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("adventure: encode response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFor(err)
	if status >= http.StatusInternalServerError && r != nil {
		if traceID := telemetry.TraceID(r.Context()); traceID != "" {
			log.Printf("adventure: request failed path=%s trace=%s: %v", r.URL.Path, traceID, err)
		} else {
			log.Printf("adventure: request failed path=%s: %v", r.URL.Path, err)
		}
	}
	payload := errorPayloadFor(err, localeForRequest(r))
	writeJSON(w, status, errorEnvelope{Error: payload})
}

// decodeBody reads a size-capped JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request body", err)
	}
	return nil
}

func payloadForTurn(record turn.Record) turnPayload {
	return turnPayload{
		Sequence:  record.Sequence,
		Action:    record.Action,
		Narrative: record.Narrative,
		Choices:   record.Choices,
		Snapshot:  record.Snapshot,
	}
}

func envelopeFor(sess *session.Session, record turn.Record) turnEnvelope {
	cursor, _ := sess.Cursor()
	return turnEnvelope{
		Turn:   payloadForTurn(record),
		Cursor: cursor,
		Count:  sess.Turns(),
		Latest: sess.IsLatest(),
	}
}

// NewHandler creates bridge routes for tests and embedded use.
func NewHandler(manager *session.Manager, store *settings.Store) http.Handler {
	return newHandler(manager, store)
}

func newHandler(manager *session.Manager, store *settings.Store) http.Handler {
	h := &handler{manager: manager, settings: store}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc(http.MethodPost+" /v1/sessions", h.handleCreateSession)
	mux.HandleFunc(http.MethodGet+" /v1/sessions/{sessionID}/turns/current", h.handleCurrentTurn)
	mux.HandleFunc(http.MethodPost+" /v1/sessions/{sessionID}/turns/navigate", h.handleNavigate)
	mux.HandleFunc(http.MethodPost+" /v1/sessions/{sessionID}/actions", h.handleSubmitAction)
	mux.HandleFunc(http.MethodDelete+" /v1/sessions/{sessionID}", h.handleDestroySession)
	mux.HandleFunc(http.MethodGet+" /v1/settings", h.handleGetSettings)
	mux.HandleFunc(http.MethodPut+" /v1/settings", h.handlePutSettings)

	h.registerWS(mux)
	return telemetry.Middleware(mux)
}

func (h *handler) sessionFromPath(r *http.Request) (*session.Session, error) {
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	return h.manager.Get(sessionID)
}

func (h *handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, ok := sess.Current()
	if !ok {
		writeError(w, r, apperrors.New(apperrors.CodeInternal, "session created without an opening turn"))
		return
	}

	log.Printf("adventure: session created id=%s", sess.ID)
	cursor, _ := sess.Cursor()
	writeJSON(w, http.StatusCreated, sessionEnvelope{
		Session: sessionPayload{
			ID:        sess.ID,
			CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		},
		Turn:   payloadForTurn(record),
		Cursor: cursor,
		Count:  sess.Turns(),
		Latest: sess.IsLatest(),
	})
}

func (h *handler) handleCurrentTurn(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, ok := sess.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, envelopeFor(sess, record))
}

func (h *handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req navigateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := sess.Navigate(req.Index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelopeFor(sess, record))
}

// handleSubmitAction is the blocking submit variant: no partial events, the
// response is the committed turn or the failure envelope.
func (h *handler) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := sess.Submit(r.Context(), req.Action, nil)
	if err != nil {
		log.Printf("adventure: submit failed session=%s err=%v", sess.ID, err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelopeFor(sess, record))
}

func (h *handler) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("sessionID"))
	h.manager.Destroy(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Get())
}

func (h *handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	if err := decodeBody(r, &next); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.settings.Put(next); err != nil {
		writeError(w, r, err)
		return
	}
	log.Printf("adventure: settings updated provider=%s", h.settings.Get().Provider)
	writeJSON(w, http.StatusOK, h.settings.Get())
}

// NewServer builds a configured adventure bridge server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := settings.NewStore(config.Settings)
	if err != nil {
		return nil, fmt.Errorf("configure generator: %w", err)
	}
	manager := session.NewManager(opening.Scene{}, store, config.GenerationTimeout)

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(manager, store),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
	}, nil
}

// Run creates and serves an adventure bridge until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init adventure server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve adventure: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("adventure server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("adventure server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil || s.httpServer == nil {
		return
	}
	_ = s.httpServer.Close()
}
