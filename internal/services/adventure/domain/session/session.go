package session

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/platform/id"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/history"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/generator"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/opening"
)

// Session is one adventure: an opaque id bound to a turn history and the
// controller that writes to it. The controller is the store's only writer.
type Session struct {
	ID        string
	CreatedAt time.Time

	store      *history.Store
	controller *Controller
}

// Current returns the record in view, or false when the history is empty.
func (s *Session) Current() (turn.Record, bool) {
	return s.store.Current()
}

// Navigate moves the view to the turn at index.
func (s *Session) Navigate(index int) (turn.Record, error) {
	return s.store.Navigate(index)
}

// IsLatest reports whether the view sits on the newest turn.
func (s *Session) IsLatest() bool {
	return s.store.IsLatest()
}

// Turns returns the number of committed turns.
func (s *Session) Turns() int {
	return s.store.Len()
}

// Cursor returns the index of the turn in view; false when empty.
func (s *Session) Cursor() (int, bool) {
	return s.store.Cursor()
}

// History returns a copy of all committed turns in sequence order.
func (s *Session) History() []turn.Record {
	return s.store.List()
}

// Submit generates and commits one turn for actionText. See
// Controller.Submit for the full contract.
func (s *Session) Submit(ctx context.Context, actionText string, emit turn.EmitFunc) (turn.Record, error) {
	return s.controller.Submit(ctx, actionText, emit)
}

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool {
	return s.controller.Busy()
}

// Cancel aborts the in-flight submission, if any.
func (s *Session) Cancel() {
	s.controller.Cancel()
}

// Destroy cancels any in-flight submission and closes the history to
// appends. Reads and navigation keep working on held references, so a
// finished adventure can still be browsed. Idempotent.
func (s *Session) Destroy() {
	s.controller.Cancel()
	s.store.Close()
}

// Destroyed reports whether the session has been destroyed.
func (s *Session) Destroyed() bool {
	return s.store.Closed()
}

// Manager owns the id-to-session mapping. The desktop flow plays one
// session at a time; nothing here assumes that.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	opening opening.Provider
	gen     generator.Generator
	timeout time.Duration
}

// NewManager wires session creation to an opening scene provider and a
// turn generator. timeout bounds each generation; non-positive means the
// platform default.
func NewManager(provider opening.Provider, gen generator.Generator, timeout time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		opening:  provider,
		gen:      gen,
		timeout:  timeout,
	}
}

// Create starts a new adventure: fresh store, opening record at sequence
// zero, idle controller.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	record, err := m.opening.OpeningTurn(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "opening scene unavailable", err)
	}

	store := history.NewStore()
	if _, err := store.Append(record); err != nil {
		return nil, err
	}

	sessionID, err := id.NewID()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "mint session id", err)
	}
	sess := &Session{
		ID:         sessionID,
		CreatedAt:  time.Now().UTC(),
		store:      store,
		controller: NewController(sessionID, store, m.gen, m.timeout),
	}

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get resolves a live session id. Unknown and destroyed ids both report
// SESSION_CLOSED; callers holding a stale id cannot tell the difference
// and should not need to.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, apperrors.WithMetadata(
			apperrors.CodeSessionClosed,
			"unknown or destroyed session",
			map[string]string{"SessionID": sessionID},
		)
	}
	return sess, nil
}

// Destroy ends a session and forgets its id. Destroying an unknown or
// already-destroyed id is a no-op.
func (m *Manager) Destroy(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if ok {
		sess.Destroy()
	}
}
