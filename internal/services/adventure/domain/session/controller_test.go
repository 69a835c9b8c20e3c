package session

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/generator"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/opening"
)

type generatorFunc func(context.Context, generator.Request, turn.EmitFunc) (generator.Result, error)

func (f generatorFunc) GenerateTurn(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
	return f(ctx, req, emit)
}

func newTestSession(t *testing.T, gen generator.Generator) *Session {
	t.Helper()
	sess, err := NewManager(opening.Scene{}, gen, time.Second).Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return sess
}

func TestSubmitCommitsGeneratedTurn(t *testing.T) {
	var got generator.Request
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		got = req
		emit.Emit(turn.Event{Type: turn.EventTextChunk, Text: "The oak door swings wide."})
		emit.Emit(turn.Event{Type: turn.EventChoices, Choices: []string{"a", "b", "c"}})
		return generator.Result{
			Narrative: "The oak door swings wide.",
			Choices:   []string{"a", "b", "c"},
			Snapshot:  map[string]string{turn.AttrTime: "Afternoon"},
		}, nil
	})
	sess := newTestSession(t, gen)

	var events []turn.Event
	record, err := sess.Submit(context.Background(), "  open the plain wooden door  ", func(evt turn.Event) {
		events = append(events, evt)
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if record.Sequence != 1 {
		t.Fatalf("record sequence = %d, want 1", record.Sequence)
	}
	if record.Action != "open the plain wooden door" {
		t.Fatalf("record action = %q, want trimmed action", record.Action)
	}
	if sess.Turns() != 2 {
		t.Fatalf("Turns() = %d, want 2", sess.Turns())
	}
	if !sess.IsLatest() {
		t.Fatal("IsLatest() = false after append, want true")
	}
	current, ok := sess.Current()
	if !ok || current.Sequence != 1 {
		t.Fatalf("Current() = %+v, %v; want the new record", current, ok)
	}

	if got.Action != "open the plain wooden door" {
		t.Fatalf("generator action = %q, want trimmed action", got.Action)
	}
	if len(got.History) != 1 {
		t.Fatalf("generator history length = %d, want 1", len(got.History))
	}
	if got.Snapshot[turn.AttrTime] != "Morning" {
		t.Fatalf("generator snapshot time = %q, want %q", got.Snapshot[turn.AttrTime], "Morning")
	}

	for _, evt := range events {
		if evt.Type == turn.EventTurnComplete || evt.Type == turn.EventError {
			t.Fatalf("terminal event %q leaked through the partial stream", evt.Type)
		}
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
}

func TestSubmitRejectsEmptyAction(t *testing.T) {
	var called bool
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		called = true
		return generator.Result{}, nil
	})
	sess := newTestSession(t, gen)

	_, err := sess.Submit(context.Background(), "   \t ", nil)
	if !errors.Is(err, apperrors.New(apperrors.CodeEmptyAction, "")) {
		t.Fatalf("Submit() error = %v, want %s", err, apperrors.CodeEmptyAction)
	}
	if called {
		t.Fatal("generator was contacted for an empty action")
	}
	if sess.Turns() != 1 {
		t.Fatalf("Turns() = %d, want 1", sess.Turns())
	}
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		close(started)
		<-release
		return generator.Result{Narrative: "Generated.", Choices: []string{"a", "b", "c"}}, nil
	})
	sess := newTestSession(t, gen)

	done := make(chan error, 1)
	go func() {
		_, err := sess.Submit(context.Background(), "open the door", nil)
		done <- err
	}()
	<-started

	_, err := sess.Submit(context.Background(), "another action", nil)
	if !errors.Is(err, apperrors.New(apperrors.CodeSubmissionInFlight, "")) {
		t.Fatalf("concurrent Submit() error = %v, want %s", err, apperrors.CodeSubmissionInFlight)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	if sess.Turns() != 2 {
		t.Fatalf("Turns() = %d, want 2 after exactly one append", sess.Turns())
	}
}

func TestSubmitRejectsWhileViewingPastTurn(t *testing.T) {
	calls := 0
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		calls++
		return generator.Result{Narrative: "Onward.", Choices: []string{"a", "b", "c"}}, nil
	})
	sess := newTestSession(t, gen)
	if _, err := sess.Submit(context.Background(), "advance", nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := sess.Navigate(0); err != nil {
		t.Fatalf("Navigate(0) error = %v", err)
	}

	_, err := sess.Submit(context.Background(), "rewrite the past", nil)
	if !errors.Is(err, apperrors.New(apperrors.CodeNotCurrentTurn, "")) {
		t.Fatalf("Submit() error = %v, want %s", err, apperrors.CodeNotCurrentTurn)
	}
	if calls != 1 {
		t.Fatalf("generator calls = %d, want 1", calls)
	}
	if sess.Turns() != 2 {
		t.Fatalf("Turns() = %d, want 2", sess.Turns())
	}
}

func TestSubmitReportsGenerationFailure(t *testing.T) {
	calls := 0
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		calls++
		if calls == 1 {
			return generator.Result{}, errors.New("connection refused")
		}
		return generator.Result{Narrative: "Recovered.", Choices: []string{"a", "b", "c"}}, nil
	})
	sess := newTestSession(t, gen)

	_, err := sess.Submit(context.Background(), "open the door", nil)
	if !errors.Is(err, apperrors.New(apperrors.CodeGenerationFailed, "")) {
		t.Fatalf("Submit() error = %v, want %s", err, apperrors.CodeGenerationFailed)
	}
	if sess.Turns() != 1 {
		t.Fatalf("Turns() = %d, want 1 after a failed submission", sess.Turns())
	}
	if sess.Busy() {
		t.Fatal("Busy() = true after a failed submission, want idle")
	}

	// The failure is retryable: the same action can be submitted again.
	record, err := sess.Submit(context.Background(), "open the door", nil)
	if err != nil {
		t.Fatalf("retry Submit() error = %v", err)
	}
	if record.Sequence != 1 {
		t.Fatalf("retry sequence = %d, want 1", record.Sequence)
	}
}

func TestSubmitRejectsEmptyNarrative(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		return generator.Result{Narrative: "   ", Choices: []string{"a", "b", "c"}}, nil
	})
	sess := newTestSession(t, gen)

	_, err := sess.Submit(context.Background(), "open the door", nil)
	if !errors.Is(err, apperrors.New(apperrors.CodeGenerationFailed, "")) {
		t.Fatalf("Submit() error = %v, want %s", err, apperrors.CodeGenerationFailed)
	}
	if sess.Turns() != 1 {
		t.Fatalf("Turns() = %d, want 1", sess.Turns())
	}
}

func TestSubmitTimesOut(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		<-ctx.Done()
		return generator.Result{}, ctx.Err()
	})
	sess, err := NewManager(opening.Scene{}, gen, 20*time.Millisecond).Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = sess.Submit(context.Background(), "wait forever", nil)
	if !errors.Is(err, apperrors.New(apperrors.CodeGenerationFailed, "")) {
		t.Fatalf("Submit() error = %v, want %s", err, apperrors.CodeGenerationFailed)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Submit() error = %v, want a deadline cause", err)
	}
	if sess.Turns() != 1 {
		t.Fatalf("Turns() = %d, want 1", sess.Turns())
	}
}

func TestCancelAbortsInFlightSubmission(t *testing.T) {
	started := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		close(started)
		<-ctx.Done()
		return generator.Result{}, ctx.Err()
	})
	sess := newTestSession(t, gen)

	done := make(chan error, 1)
	go func() {
		_, err := sess.Submit(context.Background(), "open the door", nil)
		done <- err
	}()
	<-started
	sess.Cancel()

	err := <-done
	if !errors.Is(err, apperrors.New(apperrors.CodeGenerationFailed, "")) {
		t.Fatalf("cancelled Submit() error = %v, want %s", err, apperrors.CodeGenerationFailed)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled Submit() error = %v, want a cancellation cause", err)
	}
	if sess.Busy() {
		t.Fatal("Busy() = true after cancellation, want idle")
	}
	if sess.Turns() != 1 {
		t.Fatalf("Turns() = %d, want 1", sess.Turns())
	}
}

func TestDestroyDuringGenerationPreventsAppend(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		// Ignores cancellation on purpose: the append guard is the last
		// line of defense when a generator misbehaves.
		close(started)
		<-release
		return generator.Result{Narrative: "Too late.", Choices: []string{"a", "b", "c"}}, nil
	})
	sess := newTestSession(t, gen)

	done := make(chan error, 1)
	go func() {
		_, err := sess.Submit(context.Background(), "open the door", nil)
		done <- err
	}()
	<-started
	sess.Destroy()
	close(release)

	err := <-done
	if !errors.Is(err, apperrors.New(apperrors.CodeSessionClosed, "")) {
		t.Fatalf("Submit() error = %v, want %s", err, apperrors.CodeSessionClosed)
	}
	if sess.Turns() != 1 {
		t.Fatalf("Turns() = %d, want 1; nothing may land after destroy", sess.Turns())
	}
}

func TestReadsStayAvailableDuringGeneration(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, req generator.Request, emit turn.EmitFunc) (generator.Result, error) {
		close(started)
		<-release
		return generator.Result{Narrative: "Done.", Choices: []string{"a", "b", "c"}}, nil
	})
	sess := newTestSession(t, gen)

	done := make(chan error, 1)
	go func() {
		_, err := sess.Submit(context.Background(), "open the door", nil)
		done <- err
	}()
	<-started

	if _, ok := sess.Current(); !ok {
		t.Fatal("Current() unavailable during generation")
	}
	if _, err := sess.Navigate(0); err != nil {
		t.Fatalf("Navigate(0) during generation error = %v", err)
	}
	if got := len(sess.History()); got != 1 {
		t.Fatalf("len(History()) = %d, want 1", got)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
}
