package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/invoke"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/resilience"
)

// FallbackOptions configures a FallbackController.
type FallbackOptions struct {
	FallbackModel    string
	CallTimeout      time.Duration
	MaxOutputTokens  int64
	RateLimitBackoff time.Duration
	MaxRateLimitWait time.Duration
}

// FallbackController invokes a layer's primary model and, on a hard failure
// other than an auth error, retries once with the fallback model over the
// chat protocol.
type FallbackController struct {
	invoker invoke.Invoker
	calc    *cost.Calculator
	opts    FallbackOptions
}

// NewFallbackController creates a FallbackController.
func NewFallbackController(inv invoke.Invoker, calc *cost.Calculator, opts FallbackOptions) *FallbackController {
	return &FallbackController{invoker: inv, calc: calc, opts: opts}
}

// InvokeWithFallback runs one layer. The returned error is one of:
// a canceled context error, an AuthError, a *FallbackError, or a
// configuration error from the invoker.
func (f *FallbackController) InvokeWithFallback(ctx context.Context, spec model.LayerSpec, systemPrompt, userPrompt string) (model.LayerResult, error) {
	log := zap.L().With(zap.Int("layer", spec.ID), zap.String("layer_name", spec.Name))
	start := time.Now()

	req := invoke.Request{
		Model:           spec.Model,
		SystemPrompt:    systemPrompt,
		UserPrompt:      userPrompt,
		Reasoning:       spec.UsesReasoning,
		MaxOutputTokens: f.opts.MaxOutputTokens,
	}

	res, err := f.call(ctx, spec.Protocol, req)
	if err == nil {
		return f.layerResult(spec, req.Model, res, false, time.Since(start)), nil
	}

	if ctx.Err() != nil {
		return model.LayerResult{}, eris.Wrap(ctx.Err(), "pipeline: canceled")
	}
	if resilience.IsAuth(err) {
		log.Error("pipeline: auth failure, skipping fallback", zap.Error(err))
		return model.LayerResult{}, err
	}
	if !resilience.IsHard(err) {
		return model.LayerResult{}, err
	}

	if waitErr := f.backoff(ctx, err); waitErr != nil {
		return model.LayerResult{}, eris.Wrap(waitErr, "pipeline: canceled")
	}

	log.Warn("pipeline: primary failed, using fallback model",
		zap.String("primary_model", spec.Model),
		zap.String("fallback_model", f.opts.FallbackModel),
		zap.String("kind", resilience.Kind(err)),
		zap.Error(err),
	)

	fbReq := req
	fbReq.Model = f.opts.FallbackModel
	fbReq.Reasoning = false

	res, fbErr := f.call(ctx, model.ProtocolChat, fbReq)
	if fbErr != nil {
		if ctx.Err() != nil {
			return model.LayerResult{}, eris.Wrap(ctx.Err(), "pipeline: canceled")
		}
		return model.LayerResult{}, &FallbackError{Primary: err, Fallback: fbErr}
	}
	return f.layerResult(spec, fbReq.Model, res, true, time.Since(start)), nil
}

func (f *FallbackController) call(ctx context.Context, protocol model.Protocol, req invoke.Request) (*invoke.Result, error) {
	callCtx := ctx
	if f.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.opts.CallTimeout)
		defer cancel()
	}
	return f.invoker.Invoke(callCtx, protocol, req)
}

// backoff waits before the fallback attempt when the primary was rate limited.
func (f *FallbackController) backoff(ctx context.Context, err error) error {
	if !resilience.IsRateLimited(err) {
		return nil
	}
	if reset, ok := resilience.RateLimitReset(err); ok {
		return resilience.WaitUntil(ctx, reset, f.opts.MaxRateLimitWait)
	}
	return resilience.Sleep(ctx, f.opts.RateLimitBackoff)
}

func (f *FallbackController) layerResult(spec model.LayerSpec, modelID string, res *invoke.Result, fallback bool, d time.Duration) model.LayerResult {
	c := f.calc.Cost(modelID, res.Usage.InputTokens, res.Usage.OutputTokens)

	zap.L().Info("pipeline: cost attribution",
		zap.Int("layer", spec.ID),
		zap.String("model", modelID),
		zap.Bool("fallback", fallback),
		zap.Int64("input_tokens", res.Usage.InputTokens),
		zap.Int64("output_tokens", res.Usage.OutputTokens),
		zap.Int64("reasoning_tokens", res.Usage.ReasoningTokens),
		zap.Float64("cost_usd", c.USD()),
		zap.Duration("duration", d),
	)

	return model.LayerResult{
		LayerID:       spec.ID,
		LayerName:     spec.Name,
		Model:         modelID,
		IsPrimaryTier: !fallback,
		IsFallback:    fallback,
		Content:       res.Content,
		Violation:     res.Violation,
		Usage:         res.Usage,
		Cost:          c,
		Duration:      d,
		RateLimit:     res.RateLimit,
	}
}
