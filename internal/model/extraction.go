package model

// ExtractionType names the source list of an extraction.
type ExtractionType string

const (
	ExtractionKeyFinding ExtractionType = "key_finding"
	ExtractionConcept    ExtractionType = "concept"
)

// DefaultConfidenceHint is used when a layer reported no confidence level.
const DefaultConfidenceHint = 0.5

// Extraction is one (type, value, confidence) tuple handed to a recorder.
type Extraction struct {
	LayerID    int            `json:"layer_id"`
	Type       ExtractionType `json:"type"`
	Value      string         `json:"value"`
	Confidence float64        `json:"confidence"`
}

// Extractions derives the recorder tuples from a layer's key findings and
// extracted concepts. Degraded layers yield none.
func (r LayerResult) Extractions() []Extraction {
	if r.Content == nil {
		return nil
	}
	conf, ok := r.Content.Confidence()
	if !ok {
		conf = DefaultConfidenceHint
	}
	out := make([]Extraction, 0, len(r.Content.KeyFindings)+len(r.Content.ExtractedConcepts))
	for _, f := range r.Content.KeyFindings {
		out = append(out, Extraction{LayerID: r.LayerID, Type: ExtractionKeyFinding, Value: f, Confidence: conf})
	}
	for _, c := range r.Content.ExtractedConcepts {
		out = append(out, Extraction{LayerID: r.LayerID, Type: ExtractionConcept, Value: c, Confidence: conf})
	}
	return out
}

// Extractions returns the tuples of every layer in order.
func (r *PipelineRun) Extractions() []Extraction {
	var out []Extraction
	for _, l := range r.Layers {
		out = append(out, l.Extractions()...)
	}
	return out
}
