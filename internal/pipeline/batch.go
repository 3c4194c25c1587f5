package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/model"
)

// Document is one input to a batch.
type Document struct {
	ID   string
	Text string
}

// Recorder persists terminated runs and their extractions.
type Recorder interface {
	SaveRun(ctx context.Context, run *model.PipelineRun) error
}

// BatchResult summarizes a batch. Runs is indexed like the input documents;
// Errors holds the per-document error, if any.
type BatchResult struct {
	Runs      []*model.PipelineRun
	Errors    []error
	Succeeded int64
	Failed    int64
	Canceled  int64
	Ledger    *cost.Ledger
}

// RunBatch analyses documents concurrently, at most concurrency at a time.
// A failing document does not affect the others. rec may be nil.
func (o *Orchestrator) RunBatch(ctx context.Context, docs []Document, layers model.LayerSet, concurrency int, rec Recorder) (*BatchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	result := &BatchResult{
		Runs:   make([]*model.PipelineRun, len(docs)),
		Errors: make([]error, len(docs)),
		Ledger: cost.NewLedger(),
	}
	var succeeded, failed, canceled atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, doc := range docs {
		if gCtx.Err() != nil {
			result.Errors[i] = eris.Wrap(gCtx.Err(), "pipeline: batch canceled")
			canceled.Add(1)
			continue
		}

		g.Go(func() error {
			run, err := o.Run(gCtx, doc.ID, doc.Text, layers)
			result.Runs[i] = run
			result.Errors[i] = err
			result.Ledger.Record(run)

			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, context.Canceled):
				canceled.Add(1)
			default:
				failed.Add(1)
				zap.L().Error("pipeline: document failed",
					zap.String("document_id", doc.ID),
					zap.Error(err),
				)
			}

			if rec != nil {
				if saveErr := rec.SaveRun(context.WithoutCancel(gCtx), run); saveErr != nil {
					zap.L().Error("pipeline: failed to save run",
						zap.String("document_id", doc.ID),
						zap.String("run_id", run.ID),
						zap.Error(saveErr),
					)
				}
			}
			return nil
		})
	}

	_ = g.Wait()

	result.Succeeded = succeeded.Load()
	result.Failed = failed.Load()
	result.Canceled = canceled.Load()

	zap.L().Info("pipeline: batch complete",
		zap.Int("documents", len(docs)),
		zap.Int64("succeeded", result.Succeeded),
		zap.Int64("failed", result.Failed),
		zap.Int64("canceled", result.Canceled),
		zap.Float64("total_cost_usd", result.Ledger.Total().USD()),
	)

	if err := ctx.Err(); err != nil {
		return result, eris.Wrap(err, "pipeline: batch canceled")
	}
	return result, nil
}
