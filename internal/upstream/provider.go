// Package upstream implements the provider HTTP clients. The spec treats
// these as external collaborators — "simple functions generate(model,
// prompt, opts) → text|object" — so each client here is a thin, literal
// translation of that contract into a Go interface; no SDK is assumed to
// exist, matching the pack's provider.Provider adapter shape
// (Howard-nolan-llmrouter__provider.go).
package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/modelgate/modelgate/internal/registry"
)

// Usage normalizes token accounting across providers.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Options carries the per-call hints the sync and async engines assemble
// from caller args and descriptor defaults (spec.md §4.3 step 1).
type Options struct {
	ReasoningEffort     registry.Effort
	Verbosity           registry.Verbosity
	Temperature         *float64
	MaxCompletionTokens *int
}

// TextResult is the outcome of a plain text-generation call.
type TextResult struct {
	Text  string
	Usage Usage
}

// StructuredResult is the outcome of a schema-constrained call.
type StructuredResult struct {
	Raw   json.RawMessage
	Usage Usage
}

// FormatError marks a structured-output call that failed because the
// model could not (or would not) honor the schema — the sync engine
// flips the capability cache to false on this error (spec.md §4.3 step 5).
type FormatError struct{ Err error }

func (e *FormatError) Error() string { return "structured output format error: " + e.Err.Error() }
func (e *FormatError) Unwrap() error { return e.Err }

// HistoryMessage is one turn of conversation history sent to the async
// engine's deferred-completion endpoint.
type HistoryMessage struct {
	Role    string
	Content string
}

// Client is the minimal contract every provider adapter satisfies.
type Client interface {
	Name() registry.Provider
	GenerateText(ctx context.Context, model, prompt string, opts Options) (TextResult, error)
	GenerateStructured(ctx context.Context, model, prompt string, schema json.RawMessage, opts Options) (StructuredResult, error)
}

// DeferredStatus is the current state of a deferred-completion job
// observed via PollDeferred.
type DeferredStatus struct {
	Status string // queued, in_progress, completed, failed, cancelled, expired
	Result *TextResult
	Usage  *Usage
	Err    error
}

// DeferredClient is satisfied by providers exposing a deferred-completion
// endpoint (spec.md §4.4 — only OpenAI's "responses" API among the four).
type DeferredClient interface {
	Client
	StartDeferred(ctx context.Context, model string, history []HistoryMessage, opts Options) (providerResponseID string, immediate *TextResult, err error)
	PollDeferred(ctx context.Context, providerResponseID string) (DeferredStatus, error)
}

// httpClientFor returns an *http.Client with the given timeout, shared
// transport settings kept minimal since each call already carries its own
// context deadline from the sync/async engine's timeout table.
func httpClientFor(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
