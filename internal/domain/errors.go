package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint was hit.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a write that contradicts current state.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition marks a status change the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUpstreamUnavailable covers transport failures and non-2xx upstream responses.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamMalformed covers unexpected content types and unparsable upstream bodies.
	ErrUpstreamMalformed = errors.New("upstream malformed")
	// ErrSignatureMismatch is returned when a recomputed HMAC does not match.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrUnauthenticated marks a missing, expired or unverifiable bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrOrderingUnsupported is returned by stores that cannot serve a sorted query.
	ErrOrderingUnsupported = errors.New("ordering unsupported")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamError describes a failed call to a third-party API. Kind is either
// ErrUpstreamUnavailable or ErrUpstreamMalformed.
type UpstreamError struct {
	Service string
	Status  int
	Message string
	Snippet string
	Kind    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Service, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Service, e.Kind, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Kind }

// Snip truncates an upstream body for diagnostics.
func Snip(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n])
	}
	return string(body)
}
