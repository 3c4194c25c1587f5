package invoke

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"
)

// wireSchema is sent with structured-protocol requests. Strict mode requires
// every property to be listed as required and forbids extra properties.
const wireSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["keyFindings", "metrics", "riskFactors", "opportunities", "recommendations", "extractedConcepts"],
  "properties": {
    "keyFindings": {"type": "array", "items": {"type": "string"}},
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "required": ["readinessScore", "confidenceLevel", "complexityScore"],
      "properties": {
        "readinessScore": {"type": "number"},
        "confidenceLevel": {"type": "number"},
        "complexityScore": {"type": "number"}
      }
    },
    "riskFactors": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["risk", "severity", "mitigation"],
        "properties": {
          "risk": {"type": "string"},
          "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
          "mitigation": {"type": "string"}
        }
      }
    },
    "opportunities": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["opportunity", "impact", "effort"],
        "properties": {
          "opportunity": {"type": "string"},
          "impact": {"type": "string", "enum": ["low", "medium", "high", "transformational"]},
          "effort": {"type": "string", "enum": ["low", "medium", "high"]}
        }
      }
    },
    "recommendations": {"type": "array", "items": {"type": "string"}},
    "extractedConcepts": {"type": "array", "items": {"type": "string"}}
  }
}`

// validationSchema checks decoded model output. No field is required: a
// partial payload is kept with the missing fields absent. Types, enums and
// metric bounds are enforced. List caps are applied after decoding.
const validationSchema = `{
  "type": "object",
  "properties": {
    "keyFindings": {"type": ["array", "null"], "items": {"type": "string"}},
    "metrics": {
      "type": ["object", "null"],
      "properties": {
        "readinessScore": {"type": ["number", "null"], "minimum": 1, "maximum": 10},
        "confidenceLevel": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
        "complexityScore": {"type": ["number", "null"], "minimum": 0, "maximum": 100}
      }
    },
    "riskFactors": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "risk": {"type": "string"},
          "severity": {"enum": ["low", "medium", "high", "critical"]},
          "mitigation": {"type": "string"}
        }
      }
    },
    "opportunities": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "opportunity": {"type": "string"},
          "impact": {"enum": ["low", "medium", "high", "transformational"]},
          "effort": {"enum": ["low", "medium", "high"]}
        }
      }
    },
    "recommendations": {"type": ["array", "null"], "items": {"type": "string"}},
    "extractedConcepts": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

var compiledValidation = mustCompile(validationSchema)

// WireSchema returns the strict StructuredContent schema sent to the model.
func WireSchema() json.RawMessage {
	return json.RawMessage(wireSchema)
}

func mustCompile(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic("invoke: compile schema: " + err.Error())
	}
	return schema
}
