package domain

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/session"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/opening"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func newTestEngine(t *testing.T) (*session.Manager, *settings.Store) {
	t.Helper()

	store, err := settings.NewStore(settings.Settings{})
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}
	return session.NewManager(opening.Scene{}, store, time.Second), store
}

func startTestAdventure(t *testing.T, manager *session.Manager) AdventureStartResult {
	t.Helper()

	handler := AdventureStartHandler(manager, nil)
	_, result, err := handler(context.Background(), nil, AdventureStartInput{})
	if err != nil {
		t.Fatalf("start adventure: %v", err)
	}
	return result
}

func TestAdventureStartHandler(t *testing.T) {
	t.Run("returns opening turn", func(t *testing.T) {
		manager, _ := newTestEngine(t)

		result := startTestAdventure(t, manager)

		if result.SessionID == "" {
			t.Error("expected non-empty session id")
		}
		if _, err := time.Parse(time.RFC3339, result.CreatedAt); err != nil {
			t.Errorf("parse created_at %q: %v", result.CreatedAt, err)
		}
		if result.Turn.Sequence != 0 {
			t.Errorf("expected opening sequence 0, got %d", result.Turn.Sequence)
		}
		if result.Turn.Narrative == "" {
			t.Error("expected opening narrative")
		}
		if len(result.Turn.Choices) == 0 {
			t.Error("expected opening choices")
		}
		if result.Cursor != 0 || result.Count != 1 || !result.Latest {
			t.Errorf("expected view 0/1 latest, got %d/%d latest=%v", result.Cursor, result.Count, result.Latest)
		}
	})

	t.Run("notifies turns resource", func(t *testing.T) {
		manager, _ := newTestEngine(t)

		var notified []string
		notify := func(_ context.Context, uri string) { notified = append(notified, uri) }

		handler := AdventureStartHandler(manager, notify)
		_, result, err := handler(context.Background(), nil, AdventureStartInput{})
		if err != nil {
			t.Fatalf("start adventure: %v", err)
		}

		want := TurnsResourceURI(result.SessionID)
		if len(notified) != 1 || notified[0] != want {
			t.Errorf("expected notification %q, got %v", want, notified)
		}
	})
}

func TestAdventureSubmitHandler(t *testing.T) {
	t.Run("commits turn", func(t *testing.T) {
		manager, _ := newTestEngine(t)
		started := startTestAdventure(t, manager)

		handler := AdventureSubmitHandler(manager, nil)
		_, result, err := handler(context.Background(), nil, AdventureSubmitInput{
			SessionID: started.SessionID,
			Action:    "open the door",
		})
		if err != nil {
			t.Fatalf("submit action: %v", err)
		}

		if result.Turn.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", result.Turn.Sequence)
		}
		if result.Turn.Action != "open the door" {
			t.Errorf("expected action recorded, got %q", result.Turn.Action)
		}
		if result.Turn.Narrative == "" {
			t.Error("expected generated narrative")
		}
		if result.Cursor != 1 || result.Count != 2 || !result.Latest {
			t.Errorf("expected view 1/2 latest, got %d/%d latest=%v", result.Cursor, result.Count, result.Latest)
		}
	})

	t.Run("rejects empty action", func(t *testing.T) {
		manager, _ := newTestEngine(t)
		started := startTestAdventure(t, manager)

		handler := AdventureSubmitHandler(manager, nil)
		_, _, err := handler(context.Background(), nil, AdventureSubmitInput{
			SessionID: started.SessionID,
			Action:    "   \t ",
		})
		if err == nil {
			t.Fatal("expected error for empty action")
		}
		if !strings.Contains(err.Error(), "EMPTY_ACTION") {
			t.Errorf("expected EMPTY_ACTION in error, got: %v", err)
		}
	})

	t.Run("rejects stale view", func(t *testing.T) {
		manager, _ := newTestEngine(t)
		started := startTestAdventure(t, manager)

		submit := AdventureSubmitHandler(manager, nil)
		if _, _, err := submit(context.Background(), nil, AdventureSubmitInput{
			SessionID: started.SessionID,
			Action:    "look around",
		}); err != nil {
			t.Fatalf("submit action: %v", err)
		}

		navigate := AdventureNavigateHandler(manager)
		if _, _, err := navigate(context.Background(), nil, AdventureNavigateInput{
			SessionID: started.SessionID,
			Index:     0,
		}); err != nil {
			t.Fatalf("navigate: %v", err)
		}

		_, _, err := submit(context.Background(), nil, AdventureSubmitInput{
			SessionID: started.SessionID,
			Action:    "try again",
		})
		if err == nil {
			t.Fatal("expected error for stale view")
		}
		if !strings.Contains(err.Error(), "NOT_CURRENT_TURN") {
			t.Errorf("expected NOT_CURRENT_TURN in error, got: %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		manager, _ := newTestEngine(t)

		handler := AdventureSubmitHandler(manager, nil)
		_, _, err := handler(context.Background(), nil, AdventureSubmitInput{
			SessionID: "missing",
			Action:    "look",
		})
		if err == nil {
			t.Fatal("expected error for unknown session")
		}
		if !strings.Contains(err.Error(), "SESSION_CLOSED") {
			t.Errorf("expected SESSION_CLOSED in error, got: %v", err)
		}
	})
}

func TestAdventureCurrentHandler(t *testing.T) {
	t.Run("reflects navigation", func(t *testing.T) {
		manager, _ := newTestEngine(t)
		started := startTestAdventure(t, manager)

		submit := AdventureSubmitHandler(manager, nil)
		if _, _, err := submit(context.Background(), nil, AdventureSubmitInput{
			SessionID: started.SessionID,
			Action:    "go north",
		}); err != nil {
			t.Fatalf("submit action: %v", err)
		}

		navigate := AdventureNavigateHandler(manager)
		if _, _, err := navigate(context.Background(), nil, AdventureNavigateInput{
			SessionID: started.SessionID,
			Index:     0,
		}); err != nil {
			t.Fatalf("navigate: %v", err)
		}

		current := AdventureCurrentHandler(manager)
		_, result, err := current(context.Background(), nil, AdventureCurrentInput{
			SessionID: started.SessionID,
		})
		if err != nil {
			t.Fatalf("read current turn: %v", err)
		}

		if result.Turn.Sequence != 0 {
			t.Errorf("expected view on opening turn, got sequence %d", result.Turn.Sequence)
		}
		if result.Latest {
			t.Error("expected view off the newest turn")
		}
		if result.Count != 2 {
			t.Errorf("expected 2 committed turns, got %d", result.Count)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		manager, _ := newTestEngine(t)

		handler := AdventureCurrentHandler(manager)
		_, _, err := handler(context.Background(), nil, AdventureCurrentInput{SessionID: "missing"})
		if err == nil {
			t.Fatal("expected error for unknown session")
		}
		if !strings.Contains(err.Error(), "SESSION_CLOSED") {
			t.Errorf("expected SESSION_CLOSED in error, got: %v", err)
		}
	})
}

func TestAdventureNavigateHandler(t *testing.T) {
	t.Run("out of range", func(t *testing.T) {
		manager, _ := newTestEngine(t)
		started := startTestAdventure(t, manager)

		handler := AdventureNavigateHandler(manager)
		_, _, err := handler(context.Background(), nil, AdventureNavigateInput{
			SessionID: started.SessionID,
			Index:     7,
		})
		if err == nil {
			t.Fatal("expected error for out-of-range index")
		}
		if !strings.Contains(err.Error(), "TURN_OUT_OF_RANGE") {
			t.Errorf("expected TURN_OUT_OF_RANGE in error, got: %v", err)
		}
	})
}

func TestAdventureEndHandler(t *testing.T) {
	t.Run("is idempotent", func(t *testing.T) {
		manager, _ := newTestEngine(t)
		started := startTestAdventure(t, manager)

		handler := AdventureEndHandler(manager, nil)
		for i := 0; i < 2; i++ {
			_, result, err := handler(context.Background(), nil, AdventureEndInput{SessionID: started.SessionID})
			if err != nil {
				t.Fatalf("end adventure (call %d): %v", i+1, err)
			}
			if !result.Ended {
				t.Errorf("expected ended=true on call %d", i+1)
			}
		}

		current := AdventureCurrentHandler(manager)
		if _, _, err := current(context.Background(), nil, AdventureCurrentInput{SessionID: started.SessionID}); err == nil {
			t.Fatal("expected ended session to be gone")
		}
	})

	t.Run("requires session id", func(t *testing.T) {
		manager, _ := newTestEngine(t)

		handler := AdventureEndHandler(manager, nil)
		_, _, err := handler(context.Background(), nil, AdventureEndInput{SessionID: "  "})
		if err == nil {
			t.Fatal("expected error for missing session id")
		}
		if !strings.Contains(err.Error(), "session_id is required") {
			t.Errorf("expected required error, got: %v", err)
		}
	})
}

func TestSettingsHandlers(t *testing.T) {
	t.Run("round trip masks api key", func(t *testing.T) {
		_, store := newTestEngine(t)

		set := SettingsSetHandler(store)
		_, result, err := set(context.Background(), nil, SettingsSetInput{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			APIKey:   "sk-test",
		})
		if err != nil {
			t.Fatalf("update settings: %v", err)
		}
		if result.Provider != "openai" || result.Model != "gpt-4o-mini" {
			t.Errorf("unexpected settings result: %+v", result)
		}
		if !result.APIKeySet {
			t.Error("expected api_key_set=true")
		}

		get := SettingsGetHandler(store)
		_, got, err := get(context.Background(), nil, SettingsGetInput{})
		if err != nil {
			t.Fatalf("read settings: %v", err)
		}
		if got != result {
			t.Errorf("get = %+v, want %+v", got, result)
		}
	})

	t.Run("rejects invalid settings", func(t *testing.T) {
		_, store := newTestEngine(t)

		set := SettingsSetHandler(store)
		_, _, err := set(context.Background(), nil, SettingsSetInput{Provider: "ollama"})
		if err == nil {
			t.Fatal("expected error for ollama without address")
		}
		if !strings.Contains(err.Error(), "SETTINGS_INVALID") {
			t.Errorf("expected SETTINGS_INVALID in error, got: %v", err)
		}

		if got := store.Get().Provider; string(got) != "static" {
			t.Errorf("expected settings unchanged, got provider %q", got)
		}
	})
}

func TestAdventureTurnsResourceHandler(t *testing.T) {
	t.Run("lists history", func(t *testing.T) {
		manager, _ := newTestEngine(t)
		started := startTestAdventure(t, manager)

		submit := AdventureSubmitHandler(manager, nil)
		if _, _, err := submit(context.Background(), nil, AdventureSubmitInput{
			SessionID: started.SessionID,
			Action:    "light the lantern",
		}); err != nil {
			t.Fatalf("submit action: %v", err)
		}

		handler := AdventureTurnsResourceHandler(manager)
		res, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: TurnsResourceURI(started.SessionID)},
		})
		if err != nil {
			t.Fatalf("read turns resource: %v", err)
		}
		if res == nil || len(res.Contents) != 1 {
			t.Fatalf("expected one resource content, got %+v", res)
		}

		var payload TurnListPayload
		if err := json.Unmarshal([]byte(res.Contents[0].Text), &payload); err != nil {
			t.Fatalf("unmarshal turn list: %v", err)
		}
		if payload.SessionID != started.SessionID {
			t.Errorf("payload session = %q, want %q", payload.SessionID, started.SessionID)
		}
		if len(payload.Turns) != 2 {
			t.Fatalf("expected 2 turns, got %d", len(payload.Turns))
		}
		if payload.Turns[1].Action != "light the lantern" {
			t.Errorf("turn 1 action = %q", payload.Turns[1].Action)
		}
	})

	t.Run("rejects malformed URI", func(t *testing.T) {
		manager, _ := newTestEngine(t)

		handler := AdventureTurnsResourceHandler(manager)
		_, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: "campaign://abc/turns"},
		})
		if err == nil {
			t.Fatal("expected error for malformed URI")
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		manager, _ := newTestEngine(t)

		handler := AdventureTurnsResourceHandler(manager)
		_, err := handler(context.Background(), &mcp.ReadResourceRequest{
			Params: &mcp.ReadResourceParams{URI: TurnsResourceURI("missing")},
		})
		if err == nil {
			t.Fatal("expected error for unknown session")
		}
		if !strings.Contains(err.Error(), "SESSION_CLOSED") {
			t.Errorf("expected SESSION_CLOSED in error, got: %v", err)
		}
	})
}
