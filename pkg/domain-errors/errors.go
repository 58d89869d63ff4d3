// Package domainerrors defines the coded error type shared by services and
// the HTTP layer. Services attach a Code so transport can translate without
// string matching; infrastructure facts stay in pkg/platform/sentinel.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport translation and logging.
type Code string

const (
	CodeBadRequest Code = "bad_request"
	CodeNotFound   Code = "not_found"
	CodeInternal   Code = "internal"

	// Submission authentication failures. Transport must not let callers
	// distinguish these three; the split exists for logs and metrics only.
	CodeStaleTimestamp Code = "stale_timestamp"
	CodeUnknownProject Code = "unknown_project"
	CodeBadSignature   Code = "bad_signature"

	// CodeInvalidRange rejects degenerate report ranges (start >= end).
	CodeInvalidRange Code = "invalid_range"

	// CodeStoreFailure surfaces an event/project store collaborator failure.
	CodeStoreFailure Code = "store_failure"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsAuthFailure reports whether err is one of the three submission
// authentication failures that transport collapses into a single category.
func IsAuthFailure(err error) bool {
	switch CodeOf(err) {
	case CodeStaleTimestamp, CodeUnknownProject, CodeBadSignature:
		return true
	}
	return false
}

// ToHTTPStatus maps a code to the HTTP status the transport layer responds
// with. Authentication failures all map to 401 regardless of kind.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidRange:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStaleTimestamp, CodeUnknownProject, CodeBadSignature:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
