// Package monitoring summarizes recorded pipeline runs and raises webhook
// alerts when failure, fallback or cost thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/store"
)

// maxCollectedRuns bounds how many runs one snapshot reads.
const maxCollectedRuns = 10000

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	RunsTotal      int `json:"runs_total"`
	RunsComplete   int `json:"runs_complete"`
	RunsFailed     int `json:"runs_failed"`
	RunsCanceled   int `json:"runs_canceled"`
	RunsInProgress int `json:"runs_in_progress"`

	// FailRate is failed / (complete + failed); canceled runs are excluded.
	FailRate float64 `json:"fail_rate"`
	CostUSD  float64 `json:"cost_usd"`
	AvgScore float64 `json:"avg_score"`

	LayersTotal     int     `json:"layers_total"`
	FallbackLayers  int     `json:"fallback_layers"`
	FallbackRate    float64 `json:"fallback_rate"`
	ReasoningTokens int64   `json:"reasoning_tokens"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the store query the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.RunRecord, error)
}

// Collector gathers metrics from the run store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of the runs started within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		StartedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        maxCollectedRuns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)

	var cost model.Money
	var totalScore int
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			totalScore += r.CompositeScore
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusCanceled:
			snap.RunsCanceled++
		default:
			snap.RunsInProgress++
		}

		cost += r.TotalCost
		snap.ReasoningTokens += r.TotalReasoningTokens
		snap.LayersTotal += len(r.Layers)
		snap.FallbackLayers += r.FallbackCount()
	}

	snap.CostUSD = cost.USD()
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RunsComplete > 0 {
		snap.AvgScore = float64(totalScore) / float64(snap.RunsComplete)
	}
	if snap.LayersTotal > 0 {
		snap.FallbackRate = float64(snap.FallbackLayers) / float64(snap.LayersTotal)
	}

	return snap, nil
}
