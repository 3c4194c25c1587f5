package invoke

import (
	"context"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/pkg/openai"
)

// jsonOnlyInstruction is appended to the system prompt of protocols that
// cannot enforce a schema.
const jsonOnlyInstruction = "Return JSON only. Respond with a single JSON object with the keys " +
	"keyFindings, metrics (readinessScore, confidenceLevel, complexityScore), riskFactors, " +
	"opportunities, recommendations and extractedConcepts. Do not wrap it in prose."

// ChatInvoker calls the OpenAI chat completions endpoint in JSON mode.
// Reasoning is not supported; ReasoningTokens is always 0.
type ChatInvoker struct {
	client openai.Client
}

// NewChatInvoker creates a conversational-protocol invoker.
func NewChatInvoker(client openai.Client) *ChatInvoker {
	return &ChatInvoker{client: client}
}

// Invoke implements ProtocolInvoker.
func (c *ChatInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	resp, err := c.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.Message{
			{Role: "system", Content: withJSONInstruction(req.SystemPrompt)},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxCompletionTokens: req.MaxOutputTokens,
		ResponseFormat:      &openai.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, classifyOpenAI(err)
	}

	content, violation := DecodeContent(resp.FirstContent())
	return &Result{
		Model:     modelOr(resp.Model, req.Model),
		Content:   content,
		Violation: violation,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		RateLimit: OpenAIRateLimit(resp.Header, timeNow()),
	}, nil
}

func withJSONInstruction(system string) string {
	if system == "" {
		return jsonOnlyInstruction
	}
	return system + "\n\n" + jsonOnlyInstruction
}
