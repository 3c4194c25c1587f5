package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/docintel/internal/model"
)

func ptr[T any](v T) *T { return &v }

// sampleRun builds a complete run whose layers all report readiness 8.
func sampleRun(id string) *model.PipelineRun {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &model.PipelineRun{
		ID:          id,
		DocumentID:  "doc-" + id,
		Status:      model.RunStatusComplete,
		Complete:    true,
		StartedAt:   started,
		CompletedAt: started.Add(40 * time.Second),
	}
	for i := 1; i <= model.LayerCount; i++ {
		run.Layers = append(run.Layers, model.LayerResult{
			LayerID:       i,
			LayerName:     "layer",
			Model:         "gpt-4.1",
			IsPrimaryTier: true,
			Content: &model.StructuredContent{
				KeyFindings:       []string{"finding"},
				ExtractedConcepts: []string{"concept"},
				Metrics: &model.Metrics{
					ReadinessScore:  ptr(8.0),
					ConfidenceLevel: ptr(0.9),
				},
			},
			Usage:    model.TokenUsage{InputTokens: 100, OutputTokens: 50, ReasoningTokens: 10},
			Cost:     model.Money(1000),
			Duration: 10 * time.Second,
		})
	}
	return run
}

func TestTerminalState(t *testing.T) {
	tests := []struct {
		status model.RunStatus
		want   model.RunState
	}{
		{model.RunStatusComplete, model.StateComplete},
		{model.RunStatusCanceled, model.StateCanceled},
		{model.RunStatusFailed, model.StateFailed},
		{"", model.StateFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, terminalState(&model.PipelineRun{Status: tt.status}))
		})
	}
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, defaultListLimit, listLimit(-5))
	assert.Equal(t, 7, listLimit(7))
}

func TestFinishRecord(t *testing.T) {
	r := RunRecord{PipelineRun: *sampleRun("r1")}
	r.CompositeScore = 0
	r.TotalCost = 0

	finishRecord(&r)
	assert.Equal(t, 80, r.CompositeScore)
	assert.Equal(t, model.Money(4000), r.TotalCost)
	assert.Equal(t, 40*time.Second, r.TotalDuration)
	assert.Equal(t, int64(40), r.TotalReasoningTokens)

	empty := RunRecord{}
	finishRecord(&empty)
	assert.NotNil(t, empty.Layers)
	assert.Equal(t, 0, empty.CompositeScore)
}

func TestExtractionRows(t *testing.T) {
	rows := extractionRows(sampleRun("r1"))
	assert.Len(t, rows, 8)
	assert.Equal(t, []any{"r1", 1, "key_finding", "finding", 0.9}, rows[0])
	assert.Equal(t, []any{"r1", 1, "concept", "concept", 0.9}, rows[1])

	degraded := &model.PipelineRun{ID: "r2", Layers: []model.LayerResult{{LayerID: 1}}}
	assert.Empty(t, extractionRows(degraded))
}
