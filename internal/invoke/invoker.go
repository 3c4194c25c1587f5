// Package invoke executes single model calls under one of the supported wire
// protocols and normalizes the outcome into a Result.
package invoke

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/resilience"
)

// Request is one model call.
type Request struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	Reasoning       bool
	MaxOutputTokens int64
}

// Result is the normalized outcome of a successful call. A nil Content with
// a non-empty Violation means the call succeeded but its text could not be
// decoded; usage is still populated.
type Result struct {
	Model     string
	Content   *model.StructuredContent
	Violation string
	Usage     model.TokenUsage
	RateLimit model.RateLimit
}

// Invoker executes a call under the named protocol. Hard failures are
// returned as resilience taxonomy errors.
type Invoker interface {
	Invoke(ctx context.Context, protocol model.Protocol, req Request) (*Result, error)
}

// ProtocolInvoker executes calls for a single protocol.
type ProtocolInvoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Router dispatches calls to the invoker registered for each protocol and
// paces them with a per-protocol adaptive limiter.
type Router struct {
	invokers map[model.Protocol]ProtocolInvoker
	pacers   map[model.Protocol]*resilience.Pacer
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithPacer installs a pacer for protocol.
func WithPacer(protocol model.Protocol, p *resilience.Pacer) RouterOption {
	return func(r *Router) {
		r.pacers[protocol] = p
	}
}

// NewRouter creates a router over the given protocol invokers.
func NewRouter(invokers map[model.Protocol]ProtocolInvoker, opts ...RouterOption) *Router {
	r := &Router{
		invokers: make(map[model.Protocol]ProtocolInvoker, len(invokers)),
		pacers:   make(map[model.Protocol]*resilience.Pacer),
	}
	for p, inv := range invokers {
		r.invokers[p] = inv
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Supports reports whether an invoker is registered for protocol.
func (r *Router) Supports(protocol model.Protocol) bool {
	_, ok := r.invokers[protocol]
	return ok
}

// Invoke implements Invoker.
func (r *Router) Invoke(ctx context.Context, protocol model.Protocol, req Request) (*Result, error) {
	inv, ok := r.invokers[protocol]
	if !ok {
		return nil, eris.Errorf("invoke: no invoker for protocol %q", protocol)
	}

	pacer := r.pacers[protocol]
	if pacer != nil {
		if err := pacer.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, resilience.NewNetworkError(eris.Wrap(err, "invoke: pacer wait"), 0)
		}
	}

	res, err := inv.Invoke(ctx, req)
	if err != nil {
		err = resilience.Classify(err)
		if pacer != nil && resilience.IsRateLimited(err) {
			pacer.OnRateLimit()
		}
		return nil, err
	}
	if pacer != nil {
		pacer.OnSuccess()
	}

	if res.Violation != "" {
		zap.L().Warn("invoke: schema violation",
			zap.String("protocol", string(protocol)),
			zap.String("model", req.Model),
			zap.String("violation", res.Violation),
		)
	}
	return res, nil
}
