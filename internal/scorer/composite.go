// Package scorer synthesizes per-layer readiness metrics into a single
// composite readiness score.
package scorer

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/model"
)

// Ceiling is the highest composite score a run can receive, deliberately
// below the theoretical maximum of 100.
const Ceiling = 97

// Weights holds the per-layer weights, keyed by layer id. They sum to 1.0.
type Weights map[int]float64

// DefaultWeights returns the fixed layer weights:
// Foundation 0.20, Strategic 0.25, Implementation 0.30, Evolution 0.25.
func DefaultWeights() Weights {
	return Weights{
		model.LayerFoundation:     0.20,
		model.LayerStrategic:      0.25,
		model.LayerImplementation: 0.30,
		model.LayerEvolution:      0.25,
	}
}

// Sum returns the sum of all weights.
func (w Weights) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Validate checks that every layer has a non-negative weight and the
// weights sum to 1.0.
func (w Weights) Validate() error {
	for id := 1; id <= model.LayerCount; id++ {
		v, ok := w[id]
		if !ok {
			return eris.Errorf("scorer: no weight for layer %d", id)
		}
		if v < 0 {
			return eris.Errorf("scorer: negative weight %.2f for layer %d", v, id)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return eris.New(fmt.Sprintf("scorer: weights sum to %.4f, want 1.0", w.Sum()))
	}
	return nil
}

// CompositeScore is CompositeScoreWeighted with the default weights.
func CompositeScore(results []model.LayerResult) int {
	return CompositeScoreWeighted(results, DefaultWeights())
}

// CompositeScoreWeighted sums readinessScore*10*weight over the layers that
// have parsed content with a readiness score, rounds, and clamps to [0, Ceiling].
// Layers without content or metrics contribute 0.
func CompositeScoreWeighted(results []model.LayerResult, weights Weights) int {
	sum := 0.0
	for _, r := range results {
		readiness, ok := r.Content.Readiness()
		if !ok {
			continue
		}
		sum += readiness * 10 * weights[r.LayerID]
	}
	score := int(math.Round(sum))
	if score > Ceiling {
		return Ceiling
	}
	if score < 0 {
		return 0
	}
	return score
}
