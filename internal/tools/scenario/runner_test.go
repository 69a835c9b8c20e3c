package scenario

import (
	"bytes"
	"context"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	server "github.com/louisbranch/threshold.quest/internal/services/adventure/app"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/session"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/opening"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/settings"
)

func newBridgeConfig(t *testing.T) Config {
	t.Helper()
	store, err := settings.NewStore(settings.Settings{})
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}
	manager := session.NewManager(opening.Scene{}, store, time.Second)
	srv := httptest.NewServer(server.NewHandler(manager, store))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BridgeURL = srv.URL
	cfg.Timeout = 2 * time.Second
	return cfg
}

func runScript(t *testing.T, cfg Config, script string) error {
	t.Helper()
	path := writeScenarioFixture(t, script)
	return RunFile(context.Background(), cfg, path)
}

func TestRunScenarioHappyPath(t *testing.T) {
	cfg := newBridgeConfig(t)

	err := runScript(t, cfg, `local s = scenario("walkthrough")

s:start()
s:expect_turn(0)
s:expect_narrative("dimly lit room")
s:expect_choices(3)
s:expect_state("location", "Mysterious Room")

s:submit("Open the plain wooden door")
s:expect_turn(1)
s:expect_narrative("Open the plain wooden door")

s:navigate(0)
s:expect_turn(0)
s:expect_narrative("dimly lit room")

s:end_session()

return s
`)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
}

func TestRunScenarioStartsSessionOnDemand(t *testing.T) {
	cfg := newBridgeConfig(t)

	err := runScript(t, cfg, `local s = scenario("implicit start")

s:submit("Open the door radiating blue light")
s:expect_turn(1)

return s
`)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
}

func TestRunScenarioMatchesExpectedErrors(t *testing.T) {
	cfg := newBridgeConfig(t)

	err := runScript(t, cfg, `local s = scenario("failures on purpose")

s:start()
s:submit("")
s:expect_error("EMPTY_ACTION")

s:navigate(7)
s:expect_error("TURN_OUT_OF_RANGE")

s:submit("press on")
s:expect_turn(1)

return s
`)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
}

func TestRunScenarioStopsOnUncheckedFailure(t *testing.T) {
	cfg := newBridgeConfig(t)

	err := runScript(t, cfg, `local s = scenario("unchecked")

s:start()
s:navigate(9)
s:submit("keep going")

return s
`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "step 3 (submit)") {
		t.Fatalf("error = %q, want the failing step", err.Error())
	}
	if !strings.Contains(err.Error(), "previous operation failed") {
		t.Fatalf("error = %q, want previous operation failed", err.Error())
	}
}

func TestRunScenarioFlagsTrailingFailure(t *testing.T) {
	cfg := newBridgeConfig(t)

	err := runScript(t, cfg, `local s = scenario("trailing")

s:start()
s:navigate(9)

return s
`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "after final step") {
		t.Fatalf("error = %q, want after final step", err.Error())
	}
}

func TestRunScenarioStrictAssertions(t *testing.T) {
	cfg := newBridgeConfig(t)

	err := runScript(t, cfg, `local s = scenario("strict")

s:start()
s:expect_narrative("a sunlit meadow")

return s
`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "step 2 (expect_narrative)") {
		t.Fatalf("error = %q, want the failing step", err.Error())
	}
	if !strings.Contains(err.Error(), "does not contain") {
		t.Fatalf("error = %q, want a narrative mismatch", err.Error())
	}
}

func TestRunScenarioLogOnlyKeepsGoing(t *testing.T) {
	cfg := newBridgeConfig(t)
	cfg.Assertions = AssertionLogOnly
	var buf bytes.Buffer
	cfg.Logger = log.New(&buf, "", 0)

	err := runScript(t, cfg, `local s = scenario("log only")

s:start()
s:expect_narrative("a sunlit meadow")
s:expect_choices(99)
s:submit("Open the plain wooden door")
s:expect_turn(1)

return s
`)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	logged := buf.String()
	if !strings.Contains(logged, "assertion failed") {
		t.Fatalf("log = %q, want assertion failures", logged)
	}
	if !strings.Contains(logged, "does not contain") {
		t.Fatalf("log = %q, want the narrative mismatch", logged)
	}
	if !strings.Contains(logged, "choice count") {
		t.Fatalf("log = %q, want the choice mismatch", logged)
	}
}

func TestRunScenarioUpdatesSettings(t *testing.T) {
	cfg := newBridgeConfig(t)

	err := runScript(t, cfg, `local s = scenario("settings")

s:settings({provider = "ollama"})
s:expect_error("SETTINGS_INVALID")

s:settings({provider = "static"})
s:submit("look around")
s:expect_turn(1)

return s
`)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
}

func TestRunScenarioRejectsUnknownStepKind(t *testing.T) {
	cfg := newBridgeConfig(t)

	runner, err := NewRunner(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	err = runner.RunScenario(context.Background(), &Scenario{
		Name:  "bad",
		Steps: []Step{{Kind: "teleport"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), `unknown step kind "teleport"`) {
		t.Fatalf("error = %q, want unknown step kind", err.Error())
	}
}

func TestNewRunnerRequiresReachableBridge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BridgeURL = "http://127.0.0.1:1"
	cfg.Timeout = time.Second

	_, err := NewRunner(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bridge is not reachable") {
		t.Fatalf("error = %q, want bridge is not reachable", err.Error())
	}
}

func TestNewRunnerRequiresBridgeURL(t *testing.T) {
	_, err := NewRunner(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bridge url is required") {
		t.Fatalf("error = %q, want bridge url is required", err.Error())
	}
}
