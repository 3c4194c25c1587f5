// Package pipeline runs a document through the four analysis layers in order,
// threading each layer's structured output into the next layer's prompt.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/invoke"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/resilience"
	"github.com/sells-group/docintel/internal/scorer"
)

// Orchestrator sequences the analysis layers of a document.
type Orchestrator struct {
	cfg      config.PipelineConfig
	fallback *FallbackController
	observer multiObserver
	now      func() time.Time
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver adds a state observer. Observers are called in the order added.
func WithObserver(o StateObserver) Option {
	return func(p *Orchestrator) {
		p.observer = append(p.observer, o)
	}
}

// New creates an Orchestrator.
func New(cfg config.PipelineConfig, inv invoke.Invoker, calc *cost.Calculator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg: cfg,
		fallback: NewFallbackController(inv, calc, FallbackOptions{
			FallbackModel:    cfg.FallbackModel,
			CallTimeout:      cfg.CallTimeout(),
			MaxOutputTokens:  cfg.MaxOutputTokens,
			RateLimitBackoff: cfg.RateLimitBackoff(),
			MaxRateLimitWait: cfg.MaxRateLimitWait(),
		}),
		observer: multiObserver{logObserver{}},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run analyses one document. On a fatal layer failure or cancellation it
// returns the partial run together with the error; the run is never nil.
func (o *Orchestrator) Run(ctx context.Context, documentID, text string, layers model.LayerSet) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		ID:         o.newID(),
		DocumentID: documentID,
		Layers:     make([]model.LayerResult, 0, model.LayerCount),
		StartedAt:  o.now(),
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("document_id", documentID))
	log.Info("pipeline: starting run")
	o.observer.OnState(ctx, run, model.StatePending)

	var prev *LayerContext
	var lastRate model.RateLimit

	for i, spec := range layers {
		if i > 0 {
			if err := o.pace(ctx, lastRate); err != nil {
				return o.abort(ctx, run, spec, err), o.layerErr(spec, err)
			}
		}

		o.observer.OnState(ctx, run, model.LayerRunning(spec.ID))

		system := SystemPrompt(spec)
		user := UserPrompt(spec, text, prev, o.cfg.DocumentCharLimit, o.cfg.ContextCharLimit)

		res, err := o.fallback.InvokeWithFallback(ctx, spec, system, user)
		if err != nil {
			return o.abort(ctx, run, spec, err), o.layerErr(spec, err)
		}

		run.Layers = append(run.Layers, res)
		if res.IsFallback {
			o.observer.OnState(ctx, run, model.LayerFallback(spec.ID))
		} else {
			o.observer.OnState(ctx, run, model.LayerDone(spec.ID))
		}

		prev = &LayerContext{LayerID: spec.ID, LayerName: spec.Name, Content: res.Content}
		lastRate = res.RateLimit
	}

	run.Status = model.RunStatusComplete
	run.Complete = true
	run.CompletedAt = o.now()
	Summarize(run)
	o.observer.OnState(ctx, run, model.StateComplete)

	log.Info("pipeline: run complete",
		zap.Int("composite_score", run.CompositeScore),
		zap.Float64("total_cost_usd", run.TotalCost.USD()),
		zap.Duration("total_duration", run.TotalDuration),
		zap.Int64("total_reasoning_tokens", run.TotalReasoningTokens),
		zap.Int("fallbacks", run.FallbackCount()),
	)
	return run, nil
}

// pace inserts the courtesy delay between layers and, when the previous
// call reported an exhausted quota, waits for its reset.
func (o *Orchestrator) pace(ctx context.Context, last model.RateLimit) error {
	if err := resilience.Sleep(ctx, o.cfg.LayerDelay()); err != nil {
		return err
	}
	if last.Exhausted() {
		zap.L().Info("pipeline: quota exhausted, waiting for reset",
			zap.Time("reset_at", last.ResetAt),
		)
		return resilience.WaitUntil(ctx, last.ResetAt, o.cfg.MaxRateLimitWait())
	}
	return nil
}

// abort finalizes a run that stopped at spec.
func (o *Orchestrator) abort(ctx context.Context, run *model.PipelineRun, spec model.LayerSpec, err error) *model.PipelineRun {
	run.Complete = false
	run.FailedLayer = spec.ID
	run.Error = err.Error()
	run.CompletedAt = o.now()
	Summarize(run)

	if isCanceled(err) {
		run.Status = model.RunStatusCanceled
		zap.L().Warn("pipeline: run canceled",
			zap.String("run_id", run.ID),
			zap.Int("layer", spec.ID),
			zap.Int("completed_layers", len(run.Layers)),
		)
		o.observer.OnState(ctx, run, model.StateCanceled)
		return run
	}

	run.Status = model.RunStatusFailed
	zap.L().Error("pipeline: run failed",
		zap.String("run_id", run.ID),
		zap.Int("layer", spec.ID),
		zap.String("kind", resilience.Kind(err)),
		zap.Bool("fallback_exhausted", errors.Is(err, ErrFallbackExhausted)),
		zap.Error(err),
	)
	o.observer.OnState(ctx, run, model.StateFailed)
	return run
}

func (o *Orchestrator) layerErr(spec model.LayerSpec, err error) error {
	return &LayerError{LayerID: spec.ID, LayerName: spec.Name, Err: err}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || (errors.Is(err, context.DeadlineExceeded) && !resilience.IsHard(err))
}

// Summarize recomputes the derived totals and composite score of a run from
// its layer results.
func Summarize(run *model.PipelineRun) {
	run.TotalCost = cost.Total(run.Layers)
	var d time.Duration
	for _, l := range run.Layers {
		d += l.Duration
	}
	run.TotalDuration = d
	run.TotalReasoningTokens = run.Usage().ReasoningTokens
	run.CompositeScore = scorer.CompositeScore(run.Layers)
}
