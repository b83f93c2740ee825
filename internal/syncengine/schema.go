package syncengine

import (
	"encoding/json"
	"fmt"
)

// ContextNeed is one entry of a needs_context response (spec.md §4.3
// Structured Response Schema).
type ContextNeed struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Meta is the advisory envelope returned alongside Result.Text.
type Meta struct {
	Status         string        `json:"status"`
	Confidence     *float64      `json:"confidence,omitempty"`
	ContextRequest []ContextNeed `json:"contextRequest,omitempty"`
	Questions      []string      `json:"questions,omitempty"`
	FallbackMode   bool          `json:"fallbackMode,omitempty"`
}

// Result is the Sync Engine's public contract's return value: `{text, meta}`.
type Result struct {
	Text string
	Meta Meta
}

// Schema pairs a JSON-schema definition sent to a structured-output
// endpoint with the decoder that turns its raw response into a Result.
// The advice tool and the idiom tool each supply their own Schema so both
// can share the rest of the engine's probe/retry/timeout/concurrency
// machinery (spec.md §4.6: "idiom ... Uses §4.3 with ... the structured
// schema {approach, packages_to_use[], ...}").
type Schema struct {
	Definition json.RawMessage
	Decode     func(raw json.RawMessage) (Result, error)
}

// probeSchema is a minimal schema used only to detect whether a model
// honors schema-constrained output at all (spec.md §4.3 step 4: "any
// in-flight probe is shared"). It is intentionally unrelated to the
// caller's actual response schema.
var probeSchemaDefinition = json.RawMessage(`{
  "type": "object",
  "properties": { "ok": { "type": "boolean" } },
  "required": ["ok"],
  "additionalProperties": false
}`)

const probePrompt = `Respond with a JSON object matching the schema to confirm structured output support.`

// adviceSchemaDefinition is the JSON schema the advice tool sends upstream
// for structured mode (spec.md §4.3 "Structured Response Schema").
var adviceSchemaDefinition = json.RawMessage(`{
  "type": "object",
  "properties": {
    "response_type": { "type": "string", "enum": ["complete", "needs_context", "continue"] },
    "response": { "type": "string" },
    "context_needed": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": { "type": "string", "enum": ["code", "library", "environment", "error", "requirements", "other"] },
          "description": { "type": "string" }
        },
        "required": ["type", "description"]
      }
    },
    "questions": { "type": "array", "items": { "type": "string" } },
    "confidence": { "type": "number", "minimum": 0, "maximum": 1 }
  },
  "required": ["response_type", "response"],
  "additionalProperties": false
}`)

type adviceResponse struct {
	ResponseType  string        `json:"response_type"`
	Response      string        `json:"response"`
	ContextNeeded []ContextNeed `json:"context_needed"`
	Questions     []string      `json:"questions"`
	Confidence    *float64      `json:"confidence"`
}

// decodeAdviceResponse implements the schema's mapping to Result: only
// "needs_context" gets its own status, every other response_type
// (including the schema's "continue" value, which the spec's returned
// envelope never names as a distinct status) collapses to "complete".
func decodeAdviceResponse(raw json.RawMessage) (Result, error) {
	var r adviceResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return Result{}, fmt.Errorf("decoding structured advice response: %w", err)
	}
	status := "complete"
	if r.ResponseType == "needs_context" {
		status = "needs_context"
	}
	return Result{
		Text: r.Response,
		Meta: Meta{
			Status:         status,
			Confidence:     r.Confidence,
			ContextRequest: r.ContextNeeded,
			Questions:      r.Questions,
		},
	}, nil
}

// AdviceResponseSchema is the default Schema used by the `advice` tool.
var AdviceResponseSchema = Schema{
	Definition: adviceSchemaDefinition,
	Decode:     decodeAdviceResponse,
}
