package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/model"
)

func layersWithReadiness(scores ...*float64) []model.LayerResult {
	out := make([]model.LayerResult, len(scores))
	for i, s := range scores {
		out[i] = model.LayerResult{LayerID: i + 1}
		if s != nil {
			out[i].Content = &model.StructuredContent{Metrics: &model.Metrics{ReadinessScore: s}}
		}
	}
	return out
}

func f(v float64) *float64 { return &v }

func TestDefaultWeights_Valid(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)
}

func TestWeights_Validate(t *testing.T) {
	assert.Error(t, Weights{1: 0.5, 2: 0.5}.Validate())
	assert.Error(t, Weights{1: 0.5, 2: 0.5, 3: 0.5, 4: -0.5}.Validate())
	assert.Error(t, Weights{1: 0.3, 2: 0.3, 3: 0.3, 4: 0.3}.Validate())
	assert.NoError(t, Weights{1: 0.25, 2: 0.25, 3: 0.25, 4: 0.25}.Validate())
}

func TestCompositeScore_AllTens(t *testing.T) {
	got := CompositeScore(layersWithReadiness(f(10), f(10), f(10), f(10)))
	assert.Equal(t, 97, got)
}

func TestCompositeScore_AllFives(t *testing.T) {
	got := CompositeScore(layersWithReadiness(f(5), f(5), f(5), f(5)))
	assert.Equal(t, 50, got)
}

func TestCompositeScore_MissingContent(t *testing.T) {
	// Implementation layer degraded: 5*10*(0.20+0.25+0.25) = 35
	got := CompositeScore(layersWithReadiness(f(5), f(5), nil, f(5)))
	assert.Equal(t, 35, got)
}

func TestCompositeScore_MissingMetrics(t *testing.T) {
	results := layersWithReadiness(f(8), f(8), f(8), f(8))
	results[0].Content = &model.StructuredContent{KeyFindings: []string{"no metrics"}}
	results[1].Content.Metrics = &model.Metrics{}
	// 8*10*(0.30+0.25) = 44
	assert.Equal(t, 44, CompositeScore(results))
}

func TestCompositeScore_Rounding(t *testing.T) {
	// 7*2 + 6*2.5 + 9*3 + 4*2.5 = 14 + 15 + 27 + 10 = 66
	assert.Equal(t, 66, CompositeScore(layersWithReadiness(f(7), f(6), f(9), f(4))))
	// 6.5*10*0.20 = 13; 7.3*10*0.25 = 18.25; total 31.25 → 31
	assert.Equal(t, 31, CompositeScore(layersWithReadiness(f(6.5), f(7.3), nil, nil)))
}

func TestCompositeScore_Empty(t *testing.T) {
	assert.Equal(t, 0, CompositeScore(nil))
	assert.Equal(t, 0, CompositeScore(layersWithReadiness(nil, nil, nil, nil)))
}

func TestCompositeScore_AlwaysBounded(t *testing.T) {
	values := []*float64{nil, f(1), f(2.5), f(5), f(7.5), f(9), f(10)}
	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				for _, d := range values {
					got := CompositeScore(layersWithReadiness(a, b, c, d))
					assert.GreaterOrEqual(t, got, 0)
					assert.LessOrEqual(t, got, Ceiling)
				}
			}
		}
	}
}
