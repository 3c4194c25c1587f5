package pipeline

import (
	"errors"
	"fmt"
)

// ErrFallbackExhausted reports that both the primary and the fallback call
// of a layer hard-failed.
var ErrFallbackExhausted = errors.New("pipeline: fallback exhausted")

// FallbackError carries both failures of an exhausted layer. It matches
// ErrFallbackExhausted and either underlying error.
type FallbackError struct {
	Primary  error
	Fallback error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("pipeline: fallback exhausted: primary: %v; fallback: %v", e.Primary, e.Fallback)
}

func (e *FallbackError) Unwrap() []error {
	return []error{ErrFallbackExhausted, e.Primary, e.Fallback}
}

// LayerError identifies the layer that ended a run.
type LayerError struct {
	LayerID   int
	LayerName string
	Err       error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("pipeline: layer %d (%s): %v", e.LayerID, e.LayerName, e.Err)
}

func (e *LayerError) Unwrap() error { return e.Err }
