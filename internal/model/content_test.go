package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPayload = `{
	"keyFindings": ["Targets mid-market logistics", "Requires SOC2 before launch"],
	"metrics": {"readinessScore": 7, "confidenceLevel": 0.8, "complexityScore": 45},
	"riskFactors": [{"risk": "Vendor lock-in", "severity": "high", "mitigation": "Abstract the storage layer"}],
	"opportunities": [{"opportunity": "Partner APIs", "impact": "transformational", "effort": "medium"}],
	"recommendations": ["Hire a compliance lead"],
	"extractedConcepts": ["SOC2", "event sourcing"]
}`

func TestStructuredContent_RoundTrip(t *testing.T) {
	var first StructuredContent
	require.NoError(t, json.Unmarshal([]byte(fullPayload), &first))

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	var second StructuredContent
	require.NoError(t, json.Unmarshal(encoded, &second))
	assert.Equal(t, first, second)
}

func TestStructuredContent_AbsentVersusEmpty(t *testing.T) {
	var c StructuredContent
	require.NoError(t, json.Unmarshal([]byte(`{"keyFindings": [], "metrics": {"readinessScore": 3}}`), &c))

	assert.NotNil(t, c.KeyFindings)
	assert.Empty(t, c.KeyFindings)
	assert.Nil(t, c.ExtractedConcepts)
	assert.Nil(t, c.Metrics.ConfidenceLevel)

	encoded, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"keyFindings":[]`)
	assert.NotContains(t, string(encoded), "extractedConcepts")
	assert.NotContains(t, string(encoded), "confidenceLevel")

	var again StructuredContent
	require.NoError(t, json.Unmarshal(encoded, &again))
	assert.Equal(t, c, again)
}

func TestStructuredContent_Readiness(t *testing.T) {
	var nilContent *StructuredContent
	_, ok := nilContent.Readiness()
	assert.False(t, ok)

	_, ok = (&StructuredContent{}).Readiness()
	assert.False(t, ok)

	score := 6.0
	v, ok := (&StructuredContent{Metrics: &Metrics{ReadinessScore: &score}}).Readiness()
	assert.True(t, ok)
	assert.InDelta(t, 6.0, v, 0.0001)
}

func TestStructuredContent_Truncate(t *testing.T) {
	c := &StructuredContent{
		KeyFindings:       []string{"a", "b", "c", "d", "e", "f", "g"},
		Recommendations:   []string{"1", "2", "3", "4"},
		ExtractedConcepts: []string{"x"},
	}
	c.Truncate()
	assert.Len(t, c.KeyFindings, MaxKeyFindings)
	assert.Len(t, c.Recommendations, MaxRecommendations)
	assert.Equal(t, []string{"x"}, c.ExtractedConcepts)
	assert.Nil(t, c.RiskFactors)
}
