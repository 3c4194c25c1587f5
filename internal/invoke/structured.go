package invoke

import (
	"context"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/pkg/openai"
)

const (
	reasoningEffort  = "high"
	reasoningSummary = "auto"
	schemaName       = "structured_content"
)

// StructuredInvoker calls the OpenAI Responses endpoint with a strict JSON
// schema describing StructuredContent.
type StructuredInvoker struct {
	client openai.Client
}

// NewStructuredInvoker creates a structured-protocol invoker.
func NewStructuredInvoker(client openai.Client) *StructuredInvoker {
	return &StructuredInvoker{client: client}
}

// Invoke implements ProtocolInvoker.
func (s *StructuredInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	r := openai.ResponseRequest{
		Model:           req.Model,
		Instructions:    req.SystemPrompt,
		Input:           req.UserPrompt,
		MaxOutputTokens: req.MaxOutputTokens,
		Text: openai.TextConfig{
			Format: openai.TextFormat{
				Type:   "json_schema",
				Name:   schemaName,
				Schema: WireSchema(),
				Strict: true,
			},
		},
	}
	if req.Reasoning {
		r.Reasoning = &openai.Reasoning{Effort: reasoningEffort, Summary: reasoningSummary}
	}

	resp, err := s.client.CreateResponse(ctx, r)
	if err != nil {
		return nil, classifyOpenAI(err)
	}

	content, violation := DecodeContent(resp.OutputText())
	return &Result{
		Model:     modelOr(resp.Model, req.Model),
		Content:   content,
		Violation: violation,
		Usage: model.TokenUsage{
			InputTokens:     resp.Usage.InputTokens,
			OutputTokens:    resp.Usage.OutputTokens,
			ReasoningTokens: resp.Usage.OutputTokensDetails.ReasoningTokens,
		},
		RateLimit: OpenAIRateLimit(resp.Header, timeNow()),
	}, nil
}

func modelOr(reported, requested string) string {
	if reported != "" {
		return reported
	}
	return requested
}
