package scenario

import (
	"fmt"
	"log"
)

// AssertionMode selects how expectation failures are reported.
type AssertionMode int

const (
	// AssertionStrict stops the scenario on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs unmet expectations and keeps running.
	AssertionLogOnly
)

// Assertions reports scenario failures according to its mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf reports a failure that stops the scenario regardless of mode.
// Malformed steps and broken preconditions go through here.
func (a Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports an unmet expectation. In log-only mode the failure is
// logged and the scenario continues.
func (a Assertions) Assertf(format string, args ...any) error {
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("assertion failed: "+format, args...)
		}
		return nil
	}
	return fmt.Errorf(format, args...)
}
