// Package errors defines the error taxonomy of the chatvibe console and the
// helpers used to classify, enrich and present errors. Import it as
// apperrors to avoid shadowing the standard library package.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Sentinel errors. Match them with errors.Is.
var (
	// ErrUnauthorized means the backend rejected the credentials or the
	// client holds none.
	ErrUnauthorized = stderrors.New("unauthorized")

	// ErrRefreshInvalid means the refresh credential was rejected or is
	// missing. It is fatal to the session.
	ErrRefreshInvalid = stderrors.New("refresh credential invalid")

	// ErrValidation covers client-side form errors and 400/409 responses.
	ErrValidation = stderrors.New("validation failed")

	// ErrNetwork wraps transport failures.
	ErrNetwork = stderrors.New("network error")

	// ErrLoginRequired is attached when a request ended with a redirect to login.
	ErrLoginRequired = stderrors.New("login required")

	// ErrNotFound maps 404 responses.
	ErrNotFound = stderrors.New("not found")

	// ErrRequestFailed is the catch-all for unexpected statuses.
	ErrRequestFailed = stderrors.New("request failed")

	// ErrNotConnected is returned when writing to a channel that is not open.
	ErrNotConnected = stderrors.New("channel not connected")
)

// StatusError carries the HTTP status of a failed request. It unwraps to its
// Kind sentinel so callers can branch with errors.Is.
type StatusError struct {
	StatusCode int
	Kind       error
	Detail     string
}

// NewStatusError classifies a status code into a StatusError.
func NewStatusError(statusCode int, detail string) *StatusError {
	return &StatusError{StatusCode: statusCode, Kind: KindForStatus(statusCode), Detail: detail}
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v (HTTP %d): %s", e.Kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%v (HTTP %d)", e.Kind, e.StatusCode)
}

// Unwrap returns the Kind sentinel.
func (e *StatusError) Unwrap() error {
	return e.Kind
}

// KindForStatus maps an HTTP status code to a sentinel.
func KindForStatus(statusCode int) error {
	switch statusCode {
	case http.StatusBadRequest, http.StatusConflict:
		return ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrRequestFailed
	}
}

// StatusCode extracts the HTTP status code from any error chain, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// IsAuthStatus reports whether a status code is an authorization failure.
func IsAuthStatus(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

// FieldErrors maps form field names to inline messages. The empty key holds
// a form-level message.
type FieldErrors map[string]string

// Error implements the error interface
func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			parts = append(parts, fe[k])
			continue
		}
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes FieldErrors match ErrValidation.
func (fe FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// Field returns the message for one field.
func (fe FieldErrors) Field(name string) string {
	return fe[name]
}

// Form returns the form-level message.
func (fe FieldErrors) Form() string {
	return fe[""]
}

// Is is a re-export of the standard library errors.Is.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is a re-export of the standard library errors.As.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Join is a re-export of the standard library errors.Join.
func Join(errs ...error) error { return stderrors.Join(errs...) }
