package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelgate/modelgate/internal/httpheaders"
	"github.com/modelgate/modelgate/internal/registry"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
const anthropicVersion = "2023-06-01"

// AnthropicClient talks to the Messages API. Anthropic has no native
// schema-constrained mode, so structured output is emulated by asking for
// JSON in the prompt and validating on the caller's side (the sync engine
// treats a parse failure the same as any other FormatError).
type AnthropicClient struct {
	apiKey  string
	baseURL string
}

func NewAnthropicClient(b registry.Binding) *AnthropicClient {
	base := b.BaseURL
	if base == "" {
		base = defaultAnthropicBaseURL
	}
	return &AnthropicClient{apiKey: b.APIKey, baseURL: base}
}

func (c *AnthropicClient) Name() registry.Provider { return registry.Anthropic }

func (c *AnthropicClient) GenerateText(ctx context.Context, model, prompt string, opts Options) (TextResult, error) {
	resp, err := c.messages(ctx, TimeoutsFor(model).Overall, model, prompt, opts)
	if err != nil {
		return TextResult{}, err
	}
	return resp.toTextResult()
}

func (c *AnthropicClient) GenerateStructured(ctx context.Context, model, prompt string, schema json.RawMessage, opts Options) (StructuredResult, error) {
	augmented := prompt + "\n\nRespond with JSON only, matching this schema:\n" + string(schema)
	resp, err := c.messages(ctx, TimeoutsFor(model).Structured, model, augmented, opts)
	if err != nil {
		return StructuredResult{}, &FormatError{Err: err}
	}
	text, err := resp.text()
	if err != nil {
		return StructuredResult{}, &FormatError{Err: err}
	}
	var probe json.RawMessage
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return StructuredResult{}, &FormatError{Err: fmt.Errorf("model did not return valid JSON: %w", err)}
	}
	return StructuredResult{Raw: probe, Usage: resp.usage()}, nil
}

func (c *AnthropicClient) messages(ctx context.Context, timeout time.Duration, model, prompt string, opts Options) (anthropicResponse, error) {
	body := map[string]any{
		"model":      model,
		"max_tokens": 4096,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
	}
	if opts.MaxCompletionTokens != nil {
		body["max_tokens"] = *opts.MaxCompletionTokens
	}
	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}

	headers := httpheaders.Set(httpheaders.Set(nil, "x-api-key", c.apiKey), "anthropic-version", anthropicVersion)
	var resp anthropicResponse
	err := doJSONWithHeaders(ctx, timeout, "POST", c.baseURL+"/messages", headers, body, &resp)
	return resp, err
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

func (r anthropicResponse) text() (string, error) {
	if r.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", r.Error.Message)
	}
	for _, block := range r.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: no text block returned")
}

func (r anthropicResponse) toTextResult() (TextResult, error) {
	text, err := r.text()
	if err != nil {
		return TextResult{}, err
	}
	return TextResult{Text: text, Usage: r.usage()}, nil
}

func (r anthropicResponse) usage() Usage {
	return Usage{
		PromptTokens:     r.Usage.InputTokens,
		CompletionTokens: r.Usage.OutputTokens,
		TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
	}
}
