package scenario

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/generator"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
)

func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	switch step.Kind {
	case "start":
		return r.runStartStep(ctx, state)
	case "submit":
		return r.runSubmitStep(ctx, state, step)
	case "navigate":
		return r.runNavigateStep(ctx, state, step)
	case "end_session":
		return r.runEndSessionStep(ctx, state)
	case "settings":
		return r.runSettingsStep(ctx, state, step)
	case "expect_narrative":
		return r.runExpectNarrativeStep(state, step)
	case "expect_choices":
		return r.runExpectChoicesStep(state, step)
	case "expect_state":
		return r.runExpectStateStep(state, step)
	case "expect_turn":
		return r.runExpectTurnStep(state, step)
	case "expect_error":
		return r.runExpectErrorStep(state, step)
	default:
		return r.failf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) runStartStep(ctx context.Context, state *scenarioState) error {
	if err := r.checkPending(state); err != nil {
		return err
	}
	if state.sessionID != "" {
		return r.failf("session already started")
	}
	return r.startSession(ctx, state)
}

func (r *Runner) runSubmitStep(ctx context.Context, state *scenarioState, step Step) error {
	if err := r.checkPending(state); err != nil {
		return err
	}
	if err := r.ensureSession(ctx, state); err != nil {
		return err
	}

	action := optionalString(step.Args, "action", "")
	view, err := r.bridge.SubmitAction(ctx, state.sessionID, action)
	r.recordOutcome(state, view, err)
	return nil
}

func (r *Runner) runNavigateStep(ctx context.Context, state *scenarioState, step Step) error {
	if err := r.checkPending(state); err != nil {
		return err
	}
	if err := r.ensureSession(ctx, state); err != nil {
		return err
	}

	index, ok := intArg(step.Args, "index")
	if !ok {
		return r.failf("navigate needs an index")
	}
	view, err := r.bridge.Navigate(ctx, state.sessionID, index)
	r.recordOutcome(state, view, err)
	return nil
}

func (r *Runner) runEndSessionStep(ctx context.Context, state *scenarioState) error {
	if err := r.checkPending(state); err != nil {
		return err
	}
	if state.sessionID == "" {
		return r.failf("no session to end")
	}
	if err := r.bridge.EndSession(ctx, state.sessionID); err != nil {
		return r.failf("end session: %v", err)
	}
	r.logf("session ended: %s", state.sessionID)
	state.sessionID = ""
	state.hasView = false
	return nil
}

func (r *Runner) runSettingsStep(ctx context.Context, state *scenarioState, step Step) error {
	if err := r.checkPending(state); err != nil {
		return err
	}

	next := settings.Settings{
		Provider: generator.Provider(optionalString(step.Args, "provider", "")),
		Address:  optionalString(step.Args, "address", ""),
		Model:    optionalString(step.Args, "model", ""),
		BaseURL:  optionalString(step.Args, "base_url", ""),
		APIKey:   optionalString(step.Args, "api_key", ""),
	}
	if _, err := r.bridge.UpdateSettings(ctx, next); err != nil {
		state.lastErr = err
		state.errChecked = false
		r.logf("operation failed: %v", err)
		return nil
	}
	r.logf("settings updated: provider=%s", next.Provider)
	return nil
}

func (r *Runner) runExpectNarrativeStep(state *scenarioState, step Step) error {
	if err := r.requireView(state); err != nil {
		return err
	}
	contains := optionalString(step.Args, "contains", "")
	if contains == "" {
		return r.failf("expect_narrative needs text")
	}
	if !strings.Contains(state.lastView.Turn.Narrative, contains) {
		return r.assertf("narrative %q does not contain %q", state.lastView.Turn.Narrative, contains)
	}
	return nil
}

func (r *Runner) runExpectChoicesStep(state *scenarioState, step Step) error {
	if err := r.requireView(state); err != nil {
		return err
	}
	count, ok := intArg(step.Args, "count")
	if !ok || count < 0 {
		return r.failf("expect_choices needs a count")
	}
	if got := len(state.lastView.Turn.Choices); got != count {
		return r.assertf("choice count = %d, want %d", got, count)
	}
	return nil
}

func (r *Runner) runExpectStateStep(state *scenarioState, step Step) error {
	if err := r.requireView(state); err != nil {
		return err
	}
	key := optionalString(step.Args, "key", "")
	if key == "" {
		return r.failf("expect_state needs a key")
	}
	value := optionalString(step.Args, "value", "")
	got, ok := state.lastView.Turn.Snapshot[key]
	if !ok {
		return r.assertf("state %q is not set", key)
	}
	if got != value {
		return r.assertf("state %q = %q, want %q", key, got, value)
	}
	return nil
}

func (r *Runner) runExpectTurnStep(state *scenarioState, step Step) error {
	if err := r.requireView(state); err != nil {
		return err
	}
	index, ok := intArg(step.Args, "index")
	if !ok {
		return r.failf("expect_turn needs an index")
	}
	if state.lastView.Cursor != index {
		return r.assertf("view is on turn %d, want %d", state.lastView.Cursor, index)
	}
	return nil
}

func (r *Runner) runExpectErrorStep(state *scenarioState, step Step) error {
	code := optionalString(step.Args, "code", "")
	if code == "" {
		return r.failf("expect_error needs a code")
	}
	if state.lastErr == nil {
		return r.assertf("expected %s, but the last operation succeeded", code)
	}

	state.errChecked = true
	var fail *apperrors.Error
	if !errors.As(state.lastErr, &fail) {
		return r.assertf("expected %s, got: %v", code, state.lastErr)
	}
	if string(fail.Code) != code {
		return r.assertf("error code = %s, want %s", fail.Code, code)
	}
	r.logf("matched expected error: %s", code)
	return nil
}
