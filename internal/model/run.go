package model

import (
	"fmt"
	"time"
)

// TokenUsage is the normalized token accounting of one model call.
type TokenUsage struct {
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	ReasoningTokens int64 `json:"reasoning_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.ReasoningTokens += other.ReasoningTokens
}

// RateLimit is the provider quota snapshot taken from response headers.
// Zero values mean the provider did not report the field.
type RateLimit struct {
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at,omitzero"`
}

// Exhausted reports whether the snapshot says no requests remain before ResetAt.
func (r RateLimit) Exhausted() bool {
	return r.Limit > 0 && r.Remaining <= 0 && !r.ResetAt.IsZero()
}

// LayerResult is the outcome of one layer, degraded or not.
type LayerResult struct {
	LayerID       int                `json:"layer_id"`
	LayerName     string             `json:"layer_name"`
	Model         string             `json:"model"`
	IsPrimaryTier bool               `json:"is_primary_tier"`
	IsFallback    bool               `json:"is_fallback"`
	Content       *StructuredContent `json:"content"`
	Violation     string             `json:"violation,omitempty"`
	Usage         TokenUsage         `json:"usage"`
	Cost          Money              `json:"cost_nano_usd"`
	Duration      time.Duration      `json:"duration_ns"`
	RateLimit     RateLimit          `json:"rate_limit"`
}

// Degraded reports whether the layer produced no parsed content.
func (r LayerResult) Degraded() bool {
	return r.Content == nil
}

// RunStatus is the terminal classification of a run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
	RunStatusCanceled RunStatus = "canceled"
)

// PipelineRun is the assembled result of analysing one document.
//
// TotalCost, TotalDuration, TotalReasoningTokens and CompositeScore are
// derived from Layers and are recomputed whenever a run is assembled or loaded.
type PipelineRun struct {
	ID                   string        `json:"id"`
	DocumentID           string        `json:"document_id"`
	Status               RunStatus     `json:"status"`
	Complete             bool          `json:"complete"`
	FailedLayer          int           `json:"failed_layer,omitempty"`
	Error                string        `json:"error,omitempty"`
	Layers               []LayerResult `json:"layers"`
	TotalCost            Money         `json:"total_cost_nano_usd"`
	TotalDuration        time.Duration `json:"total_duration_ns"`
	TotalReasoningTokens int64         `json:"total_reasoning_tokens"`
	CompositeScore       int           `json:"composite_score"`
	StartedAt            time.Time     `json:"started_at"`
	CompletedAt          time.Time     `json:"completed_at,omitzero"`
}

// Usage sums token usage across all layers.
func (r *PipelineRun) Usage() TokenUsage {
	var u TokenUsage
	for _, l := range r.Layers {
		u.Add(l.Usage)
	}
	return u
}

// FallbackCount returns how many layers were served by the fallback model.
func (r *PipelineRun) FallbackCount() int {
	n := 0
	for _, l := range r.Layers {
		if l.IsFallback {
			n++
		}
	}
	return n
}

// Layer returns the result for the given layer id, if present.
func (r *PipelineRun) Layer(id int) (LayerResult, bool) {
	for _, l := range r.Layers {
		if l.LayerID == id {
			return l, true
		}
	}
	return LayerResult{}, false
}

// RunState is a node of the per-document state machine.
type RunState string

const (
	StatePending  RunState = "pending"
	StateComplete RunState = "complete"
	StateFailed   RunState = "failed"
	StateCanceled RunState = "canceled"
)

// LayerRunning returns the running state of a layer.
func LayerRunning(id int) RunState { return RunState(fmt.Sprintf("layer_%d_running", id)) }

// LayerDone returns the done state of a layer served by its primary tier.
func LayerDone(id int) RunState { return RunState(fmt.Sprintf("layer_%d_done", id)) }

// LayerFallback returns the done state of a layer served by the fallback tier.
func LayerFallback(id int) RunState { return RunState(fmt.Sprintf("layer_%d_fallback", id)) }

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCanceled
}
