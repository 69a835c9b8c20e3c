// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Submission errors
	CodeEmptyAction        Code = "EMPTY_ACTION"
	CodeNotCurrentTurn     Code = "NOT_CURRENT_TURN"
	CodeSubmissionInFlight Code = "SUBMISSION_IN_FLIGHT"

	// History errors
	CodeTurnOutOfRange Code = "TURN_OUT_OF_RANGE"

	// Session errors
	CodeSessionClosed Code = "SESSION_CLOSED"

	// Generator errors
	CodeGenerationFailed Code = "GENERATION_FAILED"

	// Settings errors
	CodeSettingsInvalid Code = "SETTINGS_INVALID"

	// Transport errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes for the bridge.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeEmptyAction,
		CodeTurnOutOfRange,
		CodeSettingsInvalid,
		CodeInvalidArgument:
		return http.StatusBadRequest

	// Conflict - session state doesn't allow the operation
	case CodeNotCurrentTurn,
		CodeSubmissionInFlight:
		return http.StatusConflict

	// NotFound - session is gone or never existed
	case CodeSessionClosed:
		return http.StatusNotFound

	case CodeRateLimited:
		return http.StatusTooManyRequests

	// BadGateway - the model server failed us
	case CodeGenerationFailed:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether retrying the same operation unchanged can succeed.
func (c Code) Retryable() bool {
	switch c {
	case CodeGenerationFailed, CodeRateLimited:
		return true
	default:
		return false
	}
}
