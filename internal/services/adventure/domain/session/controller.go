// Package session binds one adventure id to its turn history and the
// controller that serializes action submissions against it.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/platform/timeouts"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/history"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/generator"
)

// Controller turns player actions into committed records, one submission
// at a time.
//
// A submission claims the controller, reads the cursor position, and then
// calls the generator with no lock held, so navigation and reads stay
// responsive during a long generation. The store is touched exactly twice:
// the position check at the start and the append at the end. A second
// submit while one is running is rejected, never queued.
type Controller struct {
	mu     sync.Mutex
	busy   bool
	cancel context.CancelFunc

	sessionID string
	store     *history.Store
	gen       generator.Generator
	timeout   time.Duration
}

// NewController binds a controller to a session's store and generator.
// A non-positive timeout falls back to timeouts.Generation.
func NewController(sessionID string, store *history.Store, gen generator.Generator, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = timeouts.Generation
	}
	return &Controller{
		sessionID: sessionID,
		store:     store,
		gen:       gen,
		timeout:   timeout,
	}
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Cancel aborts the in-flight submission, if any. The aborted submission
// returns to idle without appending; partial text already streamed is for
// the observer to discard.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Submit generates and commits one turn for actionText.
//
// Partial events stream through emit while the generator works; the
// terminal outcome is the return value, so every transport frames exactly
// one completion or error per submission. At most one record is appended
// per call; on any failure the history is left untouched.
func (c *Controller) Submit(ctx context.Context, actionText string, emit turn.EmitFunc) (turn.Record, error) {
	action := strings.TrimSpace(actionText)
	if action == "" {
		return turn.Record{}, apperrors.New(apperrors.CodeEmptyAction, "action text is empty")
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return turn.Record{}, apperrors.New(apperrors.CodeSubmissionInFlight, "a submission is already in flight")
	}
	if c.store.Closed() {
		c.mu.Unlock()
		return turn.Record{}, apperrors.New(apperrors.CodeSessionClosed, "session is destroyed")
	}
	if !c.store.IsLatest() {
		c.mu.Unlock()
		return turn.Record{}, apperrors.New(apperrors.CodeNotCurrentTurn, "a past turn is in view")
	}
	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.busy = true
	c.cancel = cancel
	records := c.store.List()
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.busy = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	var snapshot map[string]string
	if len(records) > 0 {
		snapshot = records[len(records)-1].Snapshot
	}

	result, err := c.gen.GenerateTurn(genCtx, generator.Request{
		SessionID: c.sessionID,
		Action:    action,
		History:   records,
		Snapshot:  snapshot,
	}, emit)
	if err != nil {
		return turn.Record{}, generationFailure(err)
	}
	if strings.TrimSpace(result.Narrative) == "" {
		return turn.Record{}, apperrors.New(apperrors.CodeGenerationFailed, "generator returned an empty narrative")
	}

	record := turn.NewRecord(action, result.Narrative, result.Choices, result.Snapshot)
	index, err := c.store.Append(record)
	if err != nil {
		// Destroyed while generating. Nothing was committed.
		return turn.Record{}, err
	}
	record.Sequence = index
	return record, nil
}

// generationFailure folds any generator error into the retryable failure
// the caller shows the player, keeping the cause reachable for logs.
func generationFailure(err error) error {
	message := "turn generation failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = "turn generation timed out"
	case errors.Is(err, context.Canceled):
		message = "turn generation was cancelled"
	}
	return apperrors.WrapWithMetadata(
		apperrors.CodeGenerationFailed,
		message,
		map[string]string{"Cause": err.Error()},
		err,
	)
}
