package scenario

import (
	"context"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/client"
)

// startSession creates a bridge session and puts its opening turn in view.
func (r *Runner) startSession(ctx context.Context, state *scenarioState) error {
	started, err := r.bridge.CreateSession(ctx)
	if err != nil {
		return r.failf("create session: %v", err)
	}
	state.sessionID = started.Session.ID
	state.lastView = started.TurnView
	state.hasView = true
	state.lastErr = nil
	state.errChecked = false
	r.logf("session started: %s", started.Session.ID)
	return nil
}

// ensureSession starts a session on first use so scripts can omit an
// explicit start step.
func (r *Runner) ensureSession(ctx context.Context, state *scenarioState) error {
	if state.sessionID != "" {
		return nil
	}
	return r.startSession(ctx, state)
}

// checkPending fails when the previous operation errored and no
// expect_error step examined it.
func (r *Runner) checkPending(state *scenarioState) error {
	if state.lastErr != nil && !state.errChecked {
		return r.failf("previous operation failed: %v", state.lastErr)
	}
	return nil
}

// requireView guards expectation steps that read the turn in view.
func (r *Runner) requireView(state *scenarioState) error {
	if err := r.checkPending(state); err != nil {
		return err
	}
	if !state.hasView {
		return r.failf("no turn in view; start or submit first")
	}
	return nil
}

// recordOutcome stores an operation result for later expectation steps.
// Failures are held rather than returned so a following expect_error can
// claim them.
func (r *Runner) recordOutcome(state *scenarioState, view client.TurnView, err error) {
	if err != nil {
		state.lastErr = err
		state.errChecked = false
		r.logf("operation failed: %v", err)
		return
	}
	state.lastView = view
	state.hasView = true
	state.lastErr = nil
	state.errChecked = false
	r.logf("view: turn %d of %d (latest=%t)", view.Cursor, view.Count, view.Latest)
}

func optionalString(args map[string]any, key, fallback string) string {
	if value, ok := args[key].(string); ok {
		return value
	}
	return fallback
}

// intArg reads an integer argument. Lua numbers may arrive as float64
// when a scenario is built outside the DSL.
func intArg(args map[string]any, key string) (int, bool) {
	switch value := args[key].(type) {
	case int:
		return value, true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}
