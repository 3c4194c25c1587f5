package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pacer wraps a rate.Limiter that adapts to provider feedback.
// On success it raises the rate by 20% (up to 2x initial).
// On a 429 it halves the rate (down to initial/4).
type Pacer struct {
	name        string
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewPacer creates a pacer allowing perSecond requests with the given burst.
// A non-positive perSecond disables pacing.
func NewPacer(name string, perSecond float64, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}
	r := rate.Limit(perSecond)
	if perSecond <= 0 {
		r = rate.Inf
	}
	return &Pacer{
		name:        name,
		limiter:     rate.NewLimiter(r, burst),
		initialRate: r,
		maxRate:     r * 2,
		minRate:     r / 4,
		currentRate: r,
	}
}

// Wait blocks until the pacer allows a request or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%.
func (p *Pacer) OnSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentRate == rate.Inf {
		return
	}
	next := p.currentRate * 1.2
	if next > p.maxRate {
		next = p.maxRate
	}
	p.currentRate = next
	p.limiter.SetLimit(next)
}

// OnRateLimit halves the rate after a 429.
func (p *Pacer) OnRateLimit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentRate == rate.Inf {
		return
	}
	next := p.currentRate * 0.5
	if next < p.minRate {
		next = p.minRate
	}
	p.currentRate = next
	p.limiter.SetLimit(next)
	zap.L().Warn("pacer: reducing rate after 429",
		zap.String("pacer", p.name),
		zap.Float64("new_rate", float64(next)),
	)
}

// Limit returns the current rate.
func (p *Pacer) Limit() rate.Limit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentRate
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitUntil sleeps until t, capped at maxWait. A zero or past t returns immediately.
func WaitUntil(ctx context.Context, t time.Time, maxWait time.Duration) error {
	if t.IsZero() {
		return ctx.Err()
	}
	d := time.Until(t)
	if maxWait > 0 && d > maxWait {
		d = maxWait
	}
	return Sleep(ctx, d)
}
