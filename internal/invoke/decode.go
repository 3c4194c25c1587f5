package invoke

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/docintel/internal/model"
)

// maxViolationErrors bounds how many schema errors are reported.
const maxViolationErrors = 3

// DecodeContent parses model text into StructuredContent. It never fails:
// undecodable or invalid text yields a nil content and a violation reason.
// Markdown code fences around the JSON are tolerated and list fields are
// truncated to their caps.
func DecodeContent(text string) (*model.StructuredContent, string) {
	body := stripCodeFence(text)
	if body == "" {
		return nil, "empty response"
	}

	result, err := compiledValidation.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return nil, fmt.Sprintf("invalid JSON: %v", err)
	}
	if !result.Valid() {
		return nil, describe(result.Errors())
	}

	var content model.StructuredContent
	if err := json.Unmarshal([]byte(body), &content); err != nil {
		return nil, fmt.Sprintf("decode: %v", err)
	}
	content.Truncate()
	return &content, ""
}

func describe(errs []gojsonschema.ResultError) string {
	parts := make([]string, 0, maxViolationErrors)
	for i, e := range errs {
		if i == maxViolationErrors {
			parts = append(parts, fmt.Sprintf("and %d more", len(errs)-maxViolationErrors))
			break
		}
		parts = append(parts, e.String())
	}
	return "schema: " + strings.Join(parts, "; ")
}

// stripCodeFence removes a surrounding ```json ... ``` fence, if any.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
