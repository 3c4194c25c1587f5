package invoke

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/resilience"
	"github.com/sells-group/docintel/pkg/anthropic"
	"github.com/sells-group/docintel/pkg/openai"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// OpenAI rate-limit headers. The reset header is a Go-style duration ("1s", "6m0s").
const (
	openAILimitHeader     = "x-ratelimit-limit-requests"
	openAIRemainingHeader = "x-ratelimit-remaining-requests"
	openAIResetHeader     = "x-ratelimit-reset-requests"
)

// Anthropic rate-limit headers. The reset header is RFC 3339.
const (
	anthropicLimitHeader     = "anthropic-ratelimit-requests-limit"
	anthropicRemainingHeader = "anthropic-ratelimit-requests-remaining"
	anthropicResetHeader     = "anthropic-ratelimit-requests-reset"
)

const retryAfterHeader = "retry-after"

// OpenAIRateLimit extracts the request quota snapshot from OpenAI headers.
func OpenAIRateLimit(h http.Header, now time.Time) model.RateLimit {
	if h == nil {
		return model.RateLimit{}
	}
	rl := model.RateLimit{
		Limit:     headerInt(h, openAILimitHeader),
		Remaining: headerInt(h, openAIRemainingHeader),
	}
	if v := strings.TrimSpace(h.Get(openAIResetHeader)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			rl.ResetAt = now.Add(d)
		}
	}
	if rl.ResetAt.IsZero() {
		rl.ResetAt = retryAfter(h, now)
	}
	return rl
}

// AnthropicRateLimit extracts the request quota snapshot from Anthropic headers.
func AnthropicRateLimit(h http.Header, now time.Time) model.RateLimit {
	if h == nil {
		return model.RateLimit{}
	}
	rl := model.RateLimit{
		Limit:     headerInt(h, anthropicLimitHeader),
		Remaining: headerInt(h, anthropicRemainingHeader),
	}
	if v := strings.TrimSpace(h.Get(anthropicResetHeader)); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			rl.ResetAt = t
		}
	}
	if rl.ResetAt.IsZero() {
		rl.ResetAt = retryAfter(h, now)
	}
	return rl
}

func retryAfter(h http.Header, now time.Time) time.Time {
	v := strings.TrimSpace(h.Get(retryAfterHeader))
	if v == "" {
		return time.Time{}
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return now.Add(time.Duration(secs * float64(time.Second)))
	}
	if t, err := http.ParseTime(v); err == nil {
		return t
	}
	return time.Time{}
}

func headerInt(h http.Header, key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(h.Get(key)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		reset := OpenAIRateLimit(apiErr.Header, timeNow()).ResetAt
		return resilience.FromStatus(apiErr.StatusCode, reset, err)
	}
	return resilience.Classify(err)
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		reset := AnthropicRateLimit(apiErr.Header, timeNow()).ResetAt
		return resilience.FromStatus(apiErr.StatusCode, reset, err)
	}
	return resilience.Classify(err)
}
