package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/pipeline"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	DocumentID   string          `json:"document_id,omitempty"`
	StartedAfter time.Time       `json:"started_after,omitzero"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// RunRecord is a persisted run. State is the last recorded state-machine
// node; Layers stays empty until the run terminates.
type RunRecord struct {
	model.PipelineRun
	State     model.RunState `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store persists pipeline runs and their extractions.
type Store interface {
	// Runs
	UpdateRunStatus(ctx context.Context, runID, documentID string, state model.RunState) error
	SaveRun(ctx context.Context, run *model.PipelineRun) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)

	// Extractions
	ListExtractions(ctx context.Context, runID string) ([]model.Extraction, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// terminalState maps a run's status to its final state-machine node.
func terminalState(run *model.PipelineRun) model.RunState {
	switch run.Status {
	case model.RunStatusComplete:
		return model.StateComplete
	case model.RunStatusCanceled:
		return model.StateCanceled
	default:
		return model.StateFailed
	}
}

// finishRecord recomputes the derived run fields after a load. Totals and
// the composite score are never read from storage.
func finishRecord(r *RunRecord) {
	if r.Layers == nil {
		r.Layers = []model.LayerResult{}
	}
	pipeline.Summarize(&r.PipelineRun)
}

// extractionRows flattens a run's extractions for insertion.
func extractionRows(run *model.PipelineRun) [][]any {
	ex := run.Extractions()
	rows := make([][]any, len(ex))
	for i, e := range ex {
		rows[i] = []any{run.ID, e.LayerID, string(e.Type), e.Value, e.Confidence}
	}
	return rows
}

var extractionColumns = []string{"run_id", "layer_id", "type", "value", "confidence"}
