package model

// Severity of a risk factor.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Impact of an opportunity.
type Impact string

const (
	ImpactLow              Impact = "low"
	ImpactMedium           Impact = "medium"
	ImpactHigh             Impact = "high"
	ImpactTransformational Impact = "transformational"
)

// Effort required by an opportunity.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Caps applied to decoded list fields.
const (
	MaxKeyFindings       = 5
	MaxRecommendations   = 3
	MaxExtractedConcepts = 10
)

// StructuredContent is the JSON payload each layer call returns.
//
// A nil slice or pointer means the field was absent from the payload, which
// is distinct from an empty list. omitzero keeps that distinction on
// re-encode: nil is omitted, an empty non-nil slice is written as [].
type StructuredContent struct {
	KeyFindings       []string      `json:"keyFindings,omitzero"`
	Metrics           *Metrics      `json:"metrics,omitzero"`
	RiskFactors       []RiskFactor  `json:"riskFactors,omitzero"`
	Opportunities     []Opportunity `json:"opportunities,omitzero"`
	Recommendations   []string      `json:"recommendations,omitzero"`
	ExtractedConcepts []string      `json:"extractedConcepts,omitzero"`
}

// Metrics are the numeric self-assessments of a layer.
type Metrics struct {
	ReadinessScore  *float64 `json:"readinessScore,omitzero"`
	ConfidenceLevel *float64 `json:"confidenceLevel,omitzero"`
	ComplexityScore *float64 `json:"complexityScore,omitzero"`
}

// RiskFactor is a single identified risk.
type RiskFactor struct {
	Risk       string   `json:"risk"`
	Severity   Severity `json:"severity"`
	Mitigation string   `json:"mitigation"`
}

// Opportunity is a single identified opportunity.
type Opportunity struct {
	Opportunity string `json:"opportunity"`
	Impact      Impact `json:"impact"`
	Effort      Effort `json:"effort"`
}

// Readiness returns the readiness score and whether it was present.
func (c *StructuredContent) Readiness() (float64, bool) {
	if c == nil || c.Metrics == nil || c.Metrics.ReadinessScore == nil {
		return 0, false
	}
	return *c.Metrics.ReadinessScore, true
}

// Confidence returns the confidence level and whether it was present.
func (c *StructuredContent) Confidence() (float64, bool) {
	if c == nil || c.Metrics == nil || c.Metrics.ConfidenceLevel == nil {
		return 0, false
	}
	return *c.Metrics.ConfidenceLevel, true
}

// Truncate enforces the list caps in place.
func (c *StructuredContent) Truncate() {
	if c == nil {
		return
	}
	c.KeyFindings = capList(c.KeyFindings, MaxKeyFindings)
	c.Recommendations = capList(c.Recommendations, MaxRecommendations)
	c.ExtractedConcepts = capList(c.ExtractedConcepts, MaxExtractedConcepts)
}

func capList(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
