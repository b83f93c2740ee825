package syncengine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// idiomSchemaDefinition is the structured schema the idiom tool asks for
// (spec.md §4.6: "the structured schema {approach, packages_to_use[],
// anti_patterns[], example_code, rationale, references?[]}").
var idiomSchemaDefinition = json.RawMessage(`{
  "type": "object",
  "properties": {
    "approach": { "type": "string" },
    "packages_to_use": { "type": "array", "items": { "type": "string" } },
    "anti_patterns": { "type": "array", "items": { "type": "string" } },
    "example_code": { "type": "string" },
    "rationale": { "type": "string" },
    "references": { "type": "array", "items": { "type": "string" } }
  },
  "required": ["approach", "packages_to_use", "anti_patterns", "example_code", "rationale"],
  "additionalProperties": false
}`)

type idiomResponse struct {
	Approach      string   `json:"approach"`
	PackagesToUse []string `json:"packages_to_use"`
	AntiPatterns  []string `json:"anti_patterns"`
	ExampleCode   string   `json:"example_code"`
	Rationale     string   `json:"rationale"`
	References    []string `json:"references"`
}

// decodeIdiomResponse renders the structured idiom schema into the
// markdown document spec.md §6 promises as the idiom tool's
// `content[0].text` ("markdown-rendered advice").
func decodeIdiomResponse(raw json.RawMessage) (Result, error) {
	var r idiomResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return Result{}, fmt.Errorf("decoding structured idiom response: %w", err)
	}

	var b strings.Builder
	b.WriteString("## Approach\n\n")
	b.WriteString(r.Approach)
	b.WriteString("\n\n")

	if len(r.PackagesToUse) > 0 {
		b.WriteString("## Packages to use\n\n")
		for _, p := range r.PackagesToUse {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}
	if len(r.AntiPatterns) > 0 {
		b.WriteString("## Anti-patterns\n\n")
		for _, p := range r.AntiPatterns {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}
	if r.ExampleCode != "" {
		b.WriteString("## Example\n\n```go\n")
		b.WriteString(r.ExampleCode)
		b.WriteString("\n```\n\n")
	}
	if r.Rationale != "" {
		b.WriteString("## Rationale\n\n")
		b.WriteString(r.Rationale)
		b.WriteString("\n\n")
	}
	if len(r.References) > 0 {
		b.WriteString("## References\n\n")
		for _, ref := range r.References {
			fmt.Fprintf(&b, "- %s\n", ref)
		}
	}

	return Result{Text: strings.TrimRight(b.String(), "\n") + "\n", Meta: Meta{Status: "complete"}}, nil
}

// IdiomResponseSchema is the Schema the idiom tool hands to Advise.
var IdiomResponseSchema = Schema{
	Definition: idiomSchemaDefinition,
	Decode:     decodeIdiomResponse,
}
