package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeEmptyAction, "action is required")
	err := WithMetadata(CodeEmptyAction, "action is required", map[string]string{"Field": "action"})

	if !stderrors.Is(err, sentinel) {
		t.Fatal("expected errors with the same code to match")
	}

	other := New(CodeNotCurrentTurn, "history cursor is behind")
	if stderrors.Is(err, other) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(CodeGenerationFailed, "generator request failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Error() != "generator request failed" {
		t.Fatalf("Error() = %q, want internal message", err.Error())
	}
}

func TestAsExtractsDomainError(t *testing.T) {
	err := fmt.Errorf("submit: %w", New(CodeSessionClosed, "session is closed"))

	var domainErr *Error
	if !stderrors.As(err, &domainErr) {
		t.Fatal("expected domain error in chain")
	}
	if domainErr.Code != CodeSessionClosed {
		t.Fatalf("code = %q, want %q", domainErr.Code, CodeSessionClosed)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeEmptyAction, http.StatusBadRequest},
		{CodeTurnOutOfRange, http.StatusBadRequest},
		{CodeSettingsInvalid, http.StatusBadRequest},
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeNotCurrentTurn, http.StatusConflict},
		{CodeSubmissionInFlight, http.StatusConflict},
		{CodeSessionClosed, http.StatusNotFound},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeGenerationFailed, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !CodeGenerationFailed.Retryable() {
		t.Fatal("expected GENERATION_FAILED to be retryable")
	}
	if !CodeRateLimited.Retryable() {
		t.Fatal("expected RATE_LIMITED to be retryable")
	}
	if CodeNotCurrentTurn.Retryable() {
		t.Fatal("expected NOT_CURRENT_TURN not to be retryable")
	}
	if CodeSessionClosed.Retryable() {
		t.Fatal("expected SESSION_CLOSED not to be retryable")
	}
}
