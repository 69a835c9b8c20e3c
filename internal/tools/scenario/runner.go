// Package scenario runs scripted adventures against a live bridge.
//
// Scripts are Lua files that build an ordered list of operations (start,
// submit, navigate, settings) and expectations (narrative, choices, state,
// position, error codes). The runner replays them over the bridge client
// with a per-step timeout; expectation failures either stop the run or are
// logged, depending on the assertion mode.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/client"
)

// Config controls scenario execution.
type Config struct {
	BridgeURL  string
	Locale     string
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		BridgeURL:  "http://localhost:8090",
		Timeout:    10 * time.Second,
		Assertions: AssertionStrict,
		Verbose:    false,
	}
}

// Runner executes Lua scenarios against the bridge HTTP API.
type Runner struct {
	bridge     *client.Client
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
}

// scenarioState carries identifiers and the last observed outcome across
// the steps of one run.
type scenarioState struct {
	sessionID string
	lastView  client.TurnView
	hasView   bool
	// lastErr is the failure of the most recent operation. Expectation
	// steps examine it; errChecked marks that an expect_error did.
	lastErr    error
	errChecked bool
}

// NewRunner checks the bridge is reachable and prepares a scenario runner.
func NewRunner(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.BridgeURL == "" {
		return nil, errors.New("bridge url is required")
	}

	r := newRunner(cfg)

	healthCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.bridge.Health(healthCtx); err != nil {
		return nil, fmt.Errorf("bridge is not reachable: %w", err)
	}
	return r, nil
}

// newRunner applies config defaults separately from the reachability probe
// so tests can cover them without a live bridge.
func newRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Runner{
		bridge:     client.New(cfg.BridgeURL, cfg.Locale, nil),
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(ctx, cfg)
	if err != nil {
		return err
	}

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps against the bridge.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := &scenarioState{}

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}

	// A failure the script never examined is a scenario failure, not a
	// silent pass.
	if err := r.checkPending(state); err != nil {
		return fmt.Errorf("after final step: %w", err)
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}
