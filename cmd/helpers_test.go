package main

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/docintel/internal/model"
)

// stubAnalyzer returns a canned run and error, recording the calls it saw.
type stubAnalyzer struct {
	mu    sync.Mutex
	calls []string
	run   *model.PipelineRun
	err   error
}

func (s *stubAnalyzer) Run(_ context.Context, documentID, text string, _ model.LayerSet) (*model.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, documentID+":"+text)
	if s.run == nil {
		return nil, s.err
	}
	run := *s.run
	run.DocumentID = documentID
	return &run, s.err
}

func (s *stubAnalyzer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func completeRun(id string) *model.PipelineRun {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.PipelineRun{
		ID:             id,
		Status:         model.RunStatusComplete,
		Complete:       true,
		Layers:         []model.LayerResult{{LayerID: 1, LayerName: "Foundation", Model: "gpt-4.1-mini"}},
		TotalCost:      model.MoneyFromUSD(0.0125),
		TotalDuration:  2 * time.Second,
		CompositeScore: 72,
		StartedAt:      started,
		CompletedAt:    started.Add(2 * time.Second),
	}
}

func failedRun(id string) *model.PipelineRun {
	run := completeRun(id)
	run.Status = model.RunStatusFailed
	run.Complete = false
	run.FailedLayer = 2
	run.Error = "auth"
	run.CompletedAt = time.Time{}
	return run
}
