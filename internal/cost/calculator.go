// Package cost maps model token usage to money.
package cost

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
)

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Pricing is the immutable pricing table. DefaultModel names the row used
// for model identifiers that have no row of their own.
type Pricing struct {
	DefaultModel string               `yaml:"default_model" mapstructure:"default_model"`
	Models       map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// Calculator computes costs for model calls. It copies the pricing table at
// construction and is safe for concurrent use.
type Calculator struct {
	rates        map[string]ModelRate
	defaultModel string
}

// NewCalculator creates a Calculator from the given pricing table.
func NewCalculator(p Pricing) *Calculator {
	rates := make(map[string]ModelRate, len(p.Models))
	for k, v := range p.Models {
		rates[k] = v
	}
	return &Calculator{rates: rates, defaultModel: p.DefaultModel}
}

// Rate returns the rate applied to modelID and whether it was the model's own row.
func (c *Calculator) Rate(modelID string) (ModelRate, bool) {
	if r, ok := c.rates[modelID]; ok {
		return r, true
	}
	return c.rates[c.defaultModel], false
}

// Cost computes the cost of one call. Unknown models are priced with the
// default row instead of failing.
func (c *Calculator) Cost(modelID string, inputTokens, outputTokens int64) model.Money {
	rate, known := c.Rate(modelID)
	if !known {
		zap.L().Debug("cost: unknown model, using default pricing",
			zap.String("model", modelID),
			zap.String("default_model", c.defaultModel),
		)
	}
	inCost := (float64(inputTokens) / 1e6) * rate.Input
	outCost := (float64(outputTokens) / 1e6) * rate.Output
	return model.MoneyFromUSD(inCost + outCost)
}

// Sum adds amounts. Money is integral, so the result does not depend on order.
func Sum(amounts ...model.Money) model.Money {
	var total model.Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// Total sums the cost of every layer result.
func Total(results []model.LayerResult) model.Money {
	var total model.Money
	for _, r := range results {
		total += r.Cost
	}
	return total
}

// Ledger accumulates cost and token usage across concurrently running
// document pipelines.
type Ledger struct {
	mu        sync.Mutex
	total     model.Money
	usage     model.TokenUsage
	documents int
	byModel   map[string]model.Money
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{byModel: make(map[string]model.Money)}
}

// Record adds every layer of run to the ledger.
func (l *Ledger) Record(run *model.PipelineRun) {
	if run == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.documents++
	for _, r := range run.Layers {
		l.total += r.Cost
		l.usage.Add(r.Usage)
		l.byModel[r.Model] += r.Cost
	}
}

// Total returns the accumulated cost.
func (l *Ledger) Total() model.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Usage returns the accumulated token usage.
func (l *Ledger) Usage() model.TokenUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage
}

// Documents returns the number of runs recorded.
func (l *Ledger) Documents() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.documents
}

// ByModel returns a copy of the per-model cost breakdown.
func (l *Ledger) ByModel() map[string]model.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]model.Money, len(l.byModel))
	for k, v := range l.byModel {
		out[k] = v
	}
	return out
}
