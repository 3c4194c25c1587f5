package openai

import (
	"context"
	"encoding/json"
	"net/http"
)

// ResponseRequest is the request body for POST /responses.
type ResponseRequest struct {
	Model           string     `json:"model"`
	Instructions    string     `json:"instructions,omitempty"`
	Input           string     `json:"input"`
	MaxOutputTokens int64      `json:"max_output_tokens,omitempty"`
	Text            TextConfig `json:"text"`
	Reasoning       *Reasoning `json:"reasoning,omitempty"`
}

// TextConfig constrains the output format.
type TextConfig struct {
	Format TextFormat `json:"format"`
}

// TextFormat requests strict JSON-schema output.
type TextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
	Strict bool            `json:"strict,omitempty"`
}

// Reasoning enables the model's internal reasoning step.
type Reasoning struct {
	Effort  string `json:"effort"`
	Summary string `json:"summary,omitempty"`
}

// Response is the response from POST /responses.
type Response struct {
	ID     string        `json:"id"`
	Model  string        `json:"model"`
	Status string        `json:"status"`
	Output []OutputItem  `json:"output"`
	Usage  ResponseUsage `json:"usage"`
	Header http.Header   `json:"-"`
}

// OutputItem is one item of the response output array. Only items of type
// "message" carry text content.
type OutputItem struct {
	Type    string          `json:"type"`
	Role    string          `json:"role,omitempty"`
	Content []OutputContent `json:"content,omitempty"`
}

// OutputContent is a content part of a message output item.
type OutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ResponseUsage reports token consumption for a response.
type ResponseUsage struct {
	InputTokens         int64               `json:"input_tokens"`
	OutputTokens        int64               `json:"output_tokens"`
	OutputTokensDetails OutputTokensDetails `json:"output_tokens_details"`
}

// OutputTokensDetails breaks down output tokens.
type OutputTokensDetails struct {
	ReasoningTokens int64 `json:"reasoning_tokens"`
}

// OutputText returns the text of the first message item, or "" if none.
func (r *Response) OutputText() string {
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Text != "" {
				return c.Text
			}
		}
	}
	return ""
}

func (c *httpClient) CreateResponse(ctx context.Context, req ResponseRequest) (*Response, error) {
	var result Response
	header, err := c.post(ctx, "/responses", req, &result)
	if err != nil {
		return nil, err
	}
	result.Header = header
	return &result, nil
}
