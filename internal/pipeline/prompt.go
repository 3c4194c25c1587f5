package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/docintel/internal/model"
)

const truncationMarker = "…[truncated]"

// SystemPrompt describes the analyst role and the layer's instructions.
func SystemPrompt(spec model.LayerSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s layer of a four-layer document analysis.\n", spec.Name)
	if spec.Description != "" {
		b.WriteString(spec.Description)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Target complexity range: %d-%d.\n\n", spec.ComplexityRange.Lo, spec.ComplexityRange.Hi)
	b.WriteString("Instructions:\n")
	for i, p := range spec.Prompts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	b.WriteString("\nReport readinessScore from 1 to 10, confidenceLevel from 0 to 1 and complexityScore from 0 to 100. ")
	fmt.Fprintf(&b, "Give at most %d key findings, %d recommendations and %d extracted concepts.",
		model.MaxKeyFindings, model.MaxRecommendations, model.MaxExtractedConcepts)
	return b.String()
}

// UserPrompt combines the truncated document with the previous layer's
// content. A layer without a predecessor gets no context section; a
// predecessor whose content could not be decoded is passed as null.
func UserPrompt(spec model.LayerSpec, document string, prev *LayerContext, docLimit, contextLimit int) string {
	var b strings.Builder
	b.WriteString("DOCUMENT:\n")
	b.WriteString(Truncate(document, docLimit))
	b.WriteString("\n")

	if prev != nil {
		fmt.Fprintf(&b, "\nPREVIOUS LAYER (%d %s) ANALYSIS:\n", prev.LayerID, prev.LayerName)
		b.WriteString(Truncate(SerializeContent(prev.Content), contextLimit))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nProduce the %s analysis as JSON.", spec.Name)
	return b.String()
}

// LayerContext is the part of a completed layer threaded into the next prompt.
type LayerContext struct {
	LayerID   int
	LayerName string
	Content   *model.StructuredContent
}

// SerializeContent renders content as compact JSON. Nil content renders as "null".
func SerializeContent(c *model.StructuredContent) string {
	if c == nil {
		return "null"
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "null"
	}
	return string(data)
}

// Truncate cuts s to at most limit characters (runes), marker included.
// When anything was removed the result ends with a marker, unless limit is
// too small to hold it. A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(truncationMarker)
	if keep <= 0 {
		return prefixRunes(s, limit)
	}
	return prefixRunes(s, keep) + truncationMarker
}

func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
