package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modelgate/modelgate/internal/registry"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the chat-completions endpoint for sync calls and
// the deferred "responses" endpoint for the async engine (spec.md §4.4:
// "OpenAI 'responses'" is the only deferred-completion endpoint among the
// four providers).
type OpenAIClient struct {
	apiKey  string
	baseURL string
}

// NewOpenAIClient builds a client from a registry binding.
func NewOpenAIClient(b registry.Binding) *OpenAIClient {
	base := b.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	return &OpenAIClient{apiKey: b.APIKey, baseURL: base}
}

func (c *OpenAIClient) Name() registry.Provider { return registry.OpenAI }

func (c *OpenAIClient) GenerateText(ctx context.Context, model, prompt string, opts Options) (TextResult, error) {
	body := map[string]any{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	}
	applyOpenAIOptions(body, model, opts)

	var resp chatCompletionResponse
	if err := c.post(ctx, TimeoutsFor(model).Overall, "/chat/completions", body, &resp); err != nil {
		return TextResult{}, err
	}
	return resp.toTextResult()
}

func (c *OpenAIClient) GenerateStructured(ctx context.Context, model, prompt string, schema json.RawMessage, opts Options) (StructuredResult, error) {
	body := map[string]any{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "advice_response",
				"schema": json.RawMessage(schema),
				"strict": true,
			},
		},
	}
	applyOpenAIOptions(body, model, opts)

	var resp chatCompletionResponse
	if err := c.post(ctx, TimeoutsFor(model).Structured, "/chat/completions", body, &resp); err != nil {
		if resp.isFormatError() {
			return StructuredResult{}, &FormatError{Err: err}
		}
		return StructuredResult{}, err
	}
	text, err := resp.content()
	if err != nil {
		return StructuredResult{}, &FormatError{Err: err}
	}
	return StructuredResult{Raw: json.RawMessage(text), Usage: resp.usage()}, nil
}

func (c *OpenAIClient) StartDeferred(ctx context.Context, model string, history []HistoryMessage, opts Options) (string, *TextResult, error) {
	input := make([]map[string]string, 0, len(history))
	for _, m := range history {
		input = append(input, map[string]string{"role": m.Role, "content": m.Content})
	}
	body := map[string]any{
		"model":      model,
		"input":      input,
		"background": true,
	}
	applyOpenAIOptions(body, model, opts)

	var resp responsesAPIResponse
	if err := c.post(ctx, TimeoutsFor(model).Overall, "/responses", body, &resp); err != nil {
		return "", nil, err
	}
	if resp.Status == "completed" {
		tr := resp.toTextResult()
		return resp.ID, &tr, nil
	}
	return resp.ID, nil, nil
}

func (c *OpenAIClient) PollDeferred(ctx context.Context, providerResponseID string) (DeferredStatus, error) {
	var resp responsesAPIResponse
	path := "/responses/" + providerResponseID
	if err := c.get(ctx, defaultPollTimeout, path, &resp); err != nil {
		return DeferredStatus{}, err
	}
	status := mapOpenAIStatus(resp.Status)
	ds := DeferredStatus{Status: status}
	if status == "completed" {
		tr := resp.toTextResult()
		ds.Result = &tr
		u := resp.usage()
		ds.Usage = &u
	}
	return ds, nil
}

func mapOpenAIStatus(s string) string {
	switch s {
	case "completed", "failed", "cancelled", "expired", "queued", "in_progress":
		return s
	default:
		return "in_progress"
	}
}

func applyOpenAIOptions(body map[string]any, model string, opts Options) {
	if IsReasoningName(model) {
		reasoning := map[string]any{}
		if opts.ReasoningEffort != "" {
			reasoning["effort"] = string(opts.ReasoningEffort)
		}
		if len(reasoning) > 0 {
			body["reasoning"] = reasoning
		}
		if IsGPT5Name(model) && opts.Verbosity != "" {
			body["verbosity"] = string(opts.Verbosity)
		}
	}
	if opts.Temperature != nil {
		body["temperature"] = *opts.Temperature
	}
	if opts.MaxCompletionTokens != nil {
		body["max_completion_tokens"] = *opts.MaxCompletionTokens
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

func (r chatCompletionResponse) content() (string, error) {
	if r.Error != nil {
		return "", fmt.Errorf("openai error: %s", r.Error.Message)
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return r.Choices[0].Message.Content, nil
}

func (r chatCompletionResponse) toTextResult() (TextResult, error) {
	text, err := r.content()
	if err != nil {
		return TextResult{}, err
	}
	return TextResult{Text: text, Usage: r.usage()}, nil
}

func (r chatCompletionResponse) usage() Usage {
	return Usage{
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}
}

func (r chatCompletionResponse) isFormatError() bool {
	return r.Error != nil && (r.Error.Code == "response_format_unsupported" || r.Error.Type == "invalid_request_error")
}

type responsesAPIResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output []struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

func (r responsesAPIResponse) toTextResult() TextResult {
	var text string
	if len(r.Output) > 0 && len(r.Output[0].Content) > 0 {
		text = r.Output[0].Content[0].Text
	}
	return TextResult{Text: text, Usage: r.usage()}
}

func (r responsesAPIResponse) usage() Usage {
	return Usage{
		PromptTokens:     r.Usage.InputTokens,
		CompletionTokens: r.Usage.OutputTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

const defaultPollTimeout = 10 * time.Second

func (c *OpenAIClient) post(ctx context.Context, timeout time.Duration, path string, body any, out any) error {
	return doJSON(ctx, timeout, http.MethodPost, c.baseURL+path, "Bearer "+c.apiKey, body, out)
}

func (c *OpenAIClient) get(ctx context.Context, timeout time.Duration, path string, out any) error {
	return doJSON(ctx, timeout, http.MethodGet, c.baseURL+path, "Bearer "+c.apiKey, nil, out)
}
