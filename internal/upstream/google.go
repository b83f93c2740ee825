package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelgate/modelgate/internal/registry"
)

const defaultGoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleClient talks to the Gemini generateContent endpoint.
type GoogleClient struct {
	apiKey  string
	baseURL string
}

func NewGoogleClient(b registry.Binding) *GoogleClient {
	base := b.BaseURL
	if base == "" {
		base = defaultGoogleBaseURL
	}
	return &GoogleClient{apiKey: b.APIKey, baseURL: base}
}

func (c *GoogleClient) Name() registry.Provider { return registry.Google }

func (c *GoogleClient) GenerateText(ctx context.Context, model, prompt string, opts Options) (TextResult, error) {
	body := geminiRequest(prompt, opts, nil)
	var resp geminiResponse
	if err := c.call(ctx, TimeoutsFor(model).Overall, model, body, &resp); err != nil {
		return TextResult{}, err
	}
	return resp.toTextResult()
}

func (c *GoogleClient) GenerateStructured(ctx context.Context, model, prompt string, schema json.RawMessage, opts Options) (StructuredResult, error) {
	body := geminiRequest(prompt, opts, schema)
	var resp geminiResponse
	if err := c.call(ctx, TimeoutsFor(model).Structured, model, body, &resp); err != nil {
		return StructuredResult{}, &FormatError{Err: err}
	}
	text, err := resp.text()
	if err != nil {
		return StructuredResult{}, &FormatError{Err: err}
	}
	return StructuredResult{Raw: json.RawMessage(text), Usage: resp.usage()}, nil
}

func (c *GoogleClient) call(ctx context.Context, timeout time.Duration, model string, body any, out any) error {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	return doJSON(ctx, timeout, "POST", url, "", body, out)
}

func geminiRequest(prompt string, opts Options, schema json.RawMessage) map[string]any {
	body := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
	}
	genConfig := map[string]any{}
	if opts.Temperature != nil {
		genConfig["temperature"] = *opts.Temperature
	}
	if schema != nil {
		genConfig["responseMimeType"] = "application/json"
		genConfig["responseSchema"] = json.RawMessage(schema)
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}
	return body
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *apiError `json:"error,omitempty"`
}

func (r geminiResponse) text() (string, error) {
	if r.Error != nil {
		return "", fmt.Errorf("google error: %s", r.Error.Message)
	}
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("google: no candidates returned")
	}
	return r.Candidates[0].Content.Parts[0].Text, nil
}

func (r geminiResponse) toTextResult() (TextResult, error) {
	text, err := r.text()
	if err != nil {
		return TextResult{}, err
	}
	return TextResult{Text: text, Usage: r.usage()}, nil
}

func (r geminiResponse) usage() Usage {
	return Usage{
		PromptTokens:     r.UsageMetadata.PromptTokenCount,
		CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      r.UsageMetadata.TotalTokenCount,
	}
}
