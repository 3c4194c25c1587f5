package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestFromStatus_Auth(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		err := FromStatus(code, time.Time{}, errors.New("bad key"))
		if !IsAuth(err) {
			t.Errorf("status %d should be an auth error", code)
		}
		if IsRateLimited(err) {
			t.Errorf("status %d should not be rate limited", code)
		}
	}
}

func TestFromStatus_RateLimited(t *testing.T) {
	reset := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	err := FromStatus(http.StatusTooManyRequests, reset, errors.New("slow down"))
	if !IsRateLimited(err) {
		t.Fatal("429 should be rate limited")
	}
	got, ok := RateLimitReset(err)
	if !ok || !got.Equal(reset) {
		t.Errorf("reset = %v, %v; want %v", got, ok, reset)
	}
}

func TestFromStatus_ServerError(t *testing.T) {
	err := FromStatus(http.StatusBadGateway, time.Time{}, errors.New("upstream"))
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatal("502 should be a network error")
	}
	if ne.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", ne.StatusCode)
	}
}

func TestRateLimitReset_Unknown(t *testing.T) {
	err := NewRateLimitError(errors.New("429"), time.Time{})
	if _, ok := RateLimitReset(err); ok {
		t.Error("zero reset should not be reported")
	}
	if _, ok := RateLimitReset(errors.New("other")); ok {
		t.Error("non rate-limit error should not report a reset")
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("nil should stay nil")
	}

	auth := fmt.Errorf("call: %w", NewAuthError(errors.New("x"), 401))
	if got := Classify(auth); got != auth {
		t.Error("classified errors should pass through")
	}

	canceled := fmt.Errorf("call: %w", context.Canceled)
	if got := Classify(canceled); got != canceled || IsHard(got) {
		t.Error("cancellation should not be a hard error")
	}

	deadline := fmt.Errorf("call: %w", context.DeadlineExceeded)
	var ne *NetworkError
	if !errors.As(Classify(deadline), &ne) {
		t.Error("call timeout should become a network error")
	}

	if !IsHard(Classify(errors.New("connection refused"))) {
		t.Error("unknown failures should be hard")
	}
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"":             nil,
		"auth":         NewAuthError(errors.New("x"), 401),
		"rate_limited": NewRateLimitError(errors.New("x"), time.Time{}),
		"network":      NewNetworkError(errors.New("x"), 500),
		"canceled":     context.Canceled,
		"unknown":      errors.New("x"),
	}
	for want, err := range cases {
		if got := Kind(err); got != want {
			t.Errorf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
