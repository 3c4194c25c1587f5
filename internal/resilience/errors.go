// Package resilience classifies model invocation failures and paces requests
// against provider rate limits.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AuthError reports missing or rejected credentials. A fallback call would
// fail the same way, so it is never retried.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (status %d): %v", e.StatusCode, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError is a hard failure eligible for fallback: transport errors,
// call timeouts, 5xx and any other unexpected status.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error (status %d): %v", e.StatusCode, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitError is a 429 from the provider. ResetAt is zero when the
// provider gave no reset hint.
type RateLimitError struct {
	ResetAt time.Time
	Err     error
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("rate limited: %v", e.Err)
	}
	return fmt.Sprintf("rate limited until %s: %v", e.ResetAt.Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NewAuthError wraps err as an AuthError.
func NewAuthError(err error, statusCode int) *AuthError {
	return &AuthError{Err: err, StatusCode: statusCode}
}

// NewNetworkError wraps err as a NetworkError.
func NewNetworkError(err error, statusCode int) *NetworkError {
	return &NetworkError{Err: err, StatusCode: statusCode}
}

// NewRateLimitError wraps err as a RateLimitError.
func NewRateLimitError(err error, resetAt time.Time) *RateLimitError {
	return &RateLimitError{Err: err, ResetAt: resetAt}
}

// FromStatus maps an HTTP status code to the error taxonomy.
func FromStatus(statusCode int, resetAt time.Time, err error) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewAuthError(err, statusCode)
	case http.StatusTooManyRequests:
		return NewRateLimitError(err, resetAt)
	default:
		return NewNetworkError(err, statusCode)
	}
}

// Classify normalizes an arbitrary invocation error. Errors already in the
// taxonomy and context cancellation pass through unchanged; a deadline
// exceeded on the call itself and every other failure become NetworkErrors.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		ae *AuthError
		ne *NetworkError
		re *RateLimitError
	)
	if errors.As(err, &ae) || errors.As(err, &ne) || errors.As(err, &re) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return NewNetworkError(err, 0)
}

// IsAuth reports whether err (or any error in its chain) is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimited reports whether err is a RateLimitError.
func IsRateLimited(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// RateLimitReset returns the reset time carried by a RateLimitError.
func RateLimitReset(err error) (time.Time, bool) {
	var re *RateLimitError
	if !errors.As(err, &re) || re.ResetAt.IsZero() {
		return time.Time{}, false
	}
	return re.ResetAt, true
}

// IsHard reports whether err is a hard invocation failure of any kind.
func IsHard(err error) bool {
	var (
		ae *AuthError
		ne *NetworkError
		re *RateLimitError
	)
	return errors.As(err, &ae) || errors.As(err, &ne) || errors.As(err, &re)
}

// Kind returns a short label for logs and persisted run errors.
func Kind(err error) string {
	var (
		ae *AuthError
		ne *NetworkError
		re *RateLimitError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return "auth"
	case errors.As(err, &re):
		return "rate_limited"
	case errors.As(err, &ne):
		return "network"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}
