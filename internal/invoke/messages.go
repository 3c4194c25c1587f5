package invoke

import (
	"context"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/pkg/anthropic"
)

const defaultMessagesMaxTokens = 4000

// MessagesInvoker calls the Anthropic Messages API. The system prompt is
// sent as a cacheable block. ReasoningTokens is always 0.
type MessagesInvoker struct {
	client anthropic.Client
}

// NewMessagesInvoker creates a messages-protocol invoker.
func NewMessagesInvoker(client anthropic.Client) *MessagesInvoker {
	return &MessagesInvoker{client: client}
}

// Invoke implements ProtocolInvoker.
func (m *MessagesInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMessagesMaxTokens
	}

	resp, err := m.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System: []anthropic.SystemBlock{{
			Text:         withJSONInstruction(req.SystemPrompt),
			CacheControl: &anthropic.CacheControl{TTL: "5m"},
		}},
		Messages: []anthropic.Message{{Role: "user", Content: req.UserPrompt}},
	})
	if err != nil {
		return nil, classifyAnthropic(err)
	}

	content, violation := DecodeContent(resp.Text())
	return &Result{
		Model:     modelOr(resp.Model, req.Model),
		Content:   content,
		Violation: violation,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		RateLimit: AnthropicRateLimit(resp.Header, timeNow()),
	}, nil
}
