package upstream

import (
	"context"
	"encoding/json"

	"github.com/modelgate/modelgate/internal/registry"
)

const defaultXAIBaseURL = "https://api.x.ai/v1"

// XAIClient talks to Grok's OpenAI-compatible chat-completions endpoint.
type XAIClient struct {
	apiKey  string
	baseURL string
}

func NewXAIClient(b registry.Binding) *XAIClient {
	base := b.BaseURL
	if base == "" {
		base = defaultXAIBaseURL
	}
	return &XAIClient{apiKey: b.APIKey, baseURL: base}
}

func (c *XAIClient) Name() registry.Provider { return registry.XAI }

func (c *XAIClient) GenerateText(ctx context.Context, model, prompt string, opts Options) (TextResult, error) {
	body := map[string]any{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	}
	applyCommonOptions(body, opts)

	var resp chatCompletionResponse
	if err := doJSON(ctx, TimeoutsFor(model).Overall, "POST", c.baseURL+"/chat/completions", "Bearer "+c.apiKey, body, &resp); err != nil {
		return TextResult{}, err
	}
	return resp.toTextResult()
}

func (c *XAIClient) GenerateStructured(ctx context.Context, model, prompt string, schema json.RawMessage, opts Options) (StructuredResult, error) {
	body := map[string]any{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "advice_response",
				"schema": json.RawMessage(schema),
			},
		},
	}
	applyCommonOptions(body, opts)

	var resp chatCompletionResponse
	if err := doJSON(ctx, TimeoutsFor(model).Structured, "POST", c.baseURL+"/chat/completions", "Bearer "+c.apiKey, body, &resp); err != nil {
		return StructuredResult{}, &FormatError{Err: err}
	}
	text, err := resp.content()
	if err != nil {
		return StructuredResult{}, &FormatError{Err: err}
	}
	return StructuredResult{Raw: json.RawMessage(text), Usage: resp.usage()}, nil
}

func applyCommonOptions(body map[string]any, opts Options) {
	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}
	if opts.MaxCompletionTokens != nil {
		body["max_completion_tokens"] = *opts.MaxCompletionTokens
	}
}
