// Package asyncengine implements the Turn Runner and Poller (spec.md §4.4):
// the persisted, deduplicated, pollable counterpart to the Sync Engine for
// providers that expose a deferred-completion endpoint.
package asyncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/modelgate/modelgate/internal/errs"
	"github.com/modelgate/modelgate/internal/hashing"
	"github.com/modelgate/modelgate/internal/limiter"
	"github.com/modelgate/modelgate/internal/registry"
	"github.com/modelgate/modelgate/internal/store"
	"github.com/modelgate/modelgate/internal/upstream"
)

// ProviderResolver is the subset of *upstream.Set the async engine needs;
// declared locally so tests can substitute fakes.
type ProviderResolver interface {
	For(p registry.Provider) (upstream.Client, bool)
	DeferredFor(p registry.Provider) (upstream.DeferredClient, bool)
}

const defaultMaxHistoryMessages = 50
const defaultOverallTimeout = 30 * time.Second
const initialPollDelay = time.Second
const maxPollDelay = 5 * time.Second

// Engine drives runTurn/checkOrWait over the Conversation/Request store
// (spec.md §4.4).
type Engine struct {
	Registry           *registry.Registry
	Upstreams          ProviderResolver
	Store              *store.Store
	Limits             *limiter.Table
	Log                zerolog.Logger
	MaxHistoryMessages int
}

// New builds an Async Engine over the process-wide singletons.
func New(reg *registry.Registry, upstreams ProviderResolver, st *store.Store, limits *limiter.Table, log zerolog.Logger) *Engine {
	return &Engine{
		Registry:           reg,
		Upstreams:          upstreams,
		Store:              st,
		Limits:             limits,
		Log:                log,
		MaxHistoryMessages: defaultMaxHistoryMessages,
	}
}

// Options carries the per-call hints RunTurn needs beyond the user text.
type Options struct {
	ReasoningEffort     registry.Effort
	Verbosity           registry.Verbosity
	Temperature         *float64
	MaxCompletionTokens *int
	SystemPrompt        *string
	OverallTimeout      time.Duration
}

// TurnStatus is the outward variant tag of a TurnResult (spec.md §4.4,
// "TurnResult variants").
type TurnStatus string

const (
	TurnCompleted TurnStatus = "completed"
	TurnWaiting   TurnStatus = "waiting"
	TurnError     TurnStatus = "error"
)

// TurnResult is the union of runTurn/checkOrWait's three documented
// outcomes.
type TurnResult struct {
	Status              TurnStatus
	RequestID           int64
	Text                string
	Usage               *upstream.Usage
	ProviderResponseID  string
	Err                 error
}

// RunTurn implements spec.md §4.4's runTurn algorithm end to end.
func (e *Engine) RunTurn(ctx context.Context, conversationID *int64, userText string, model string, opts Options) (TurnResult, error) {
	if strings.TrimSpace(userText) == "" {
		return TurnResult{}, errs.New(errs.KindInvalidParams, "prompt cannot be empty")
	}
	desc, err := e.Registry.Resolve(model)
	if err != nil {
		return TurnResult{}, err
	}

	convID, isNew, err := e.resolveConversation(ctx, conversationID)
	if err != nil {
		return TurnResult{}, err
	}
	if isNew && opts.SystemPrompt != nil {
		if _, err := e.Store.AppendMessage(ctx, convID, "system", *opts.SystemPrompt, nil); err != nil {
			return TurnResult{}, fmt.Errorf("inserting system prompt: %w", err)
		}
	}

	userMsg, err := e.Store.AppendMessage(ctx, convID, "user", userText, nil)
	if err != nil {
		return TurnResult{}, fmt.Errorf("appending user message: %w", err)
	}

	history, err := e.Store.RecentMessages(ctx, convID, e.MaxHistoryMessages)
	if err != nil {
		return TurnResult{}, fmt.Errorf("loading history: %w", err)
	}

	params := map[string]any{
		"reasoningEffort":     string(opts.ReasoningEffort),
		"verbosity":           string(opts.Verbosity),
		"temperature":         opts.Temperature,
		"maxCompletionTokens": opts.MaxCompletionTokens,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return TurnResult{}, fmt.Errorf("encoding params: %w", err)
	}
	// The hash covers the new user text, not the whole history: the history
	// grows with every turn, so hashing it would never match a repeated
	// prompt in the same conversation.
	inputHash := hashing.InputHash(model, userText, params)

	req, created, err := e.Store.UpsertRequest(ctx, convID, userMsg.ID, model, string(paramsJSON), inputHash)
	if err != nil {
		return TurnResult{}, fmt.Errorf("upserting request: %w", err)
	}

	if req.Status == store.StatusCompleted {
		return e.completedResult(req), nil
	}
	if isTerminalFailure(req.Status) {
		return e.failureResult(req), nil
	}
	if !created && req.ProviderResponseID != nil {
		return TurnResult{Status: TurnWaiting, RequestID: req.ID, ProviderResponseID: *req.ProviderResponseID}, nil
	}

	overall := opts.OverallTimeout
	if overall <= 0 {
		overall = defaultOverallTimeout
	}
	return e.startJob(ctx, req, desc, history, opts, overall)
}

// CheckOrWait implements spec.md §4.4's checkOrWait, resuming the poll from
// a request's persisted providerResponseId.
func (e *Engine) CheckOrWait(ctx context.Context, requestID int64, waitMs int64) (TurnResult, error) {
	req, err := e.Store.GetRequest(ctx, requestID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("loading request: %w", err)
	}
	if req == nil {
		return TurnResult{}, errs.New(errs.KindInvalidParams, fmt.Sprintf("unknown request id %d", requestID))
	}
	if req.Status == store.StatusCompleted {
		return e.completedResult(req), nil
	}
	if isTerminalFailure(req.Status) {
		return e.failureResult(req), nil
	}
	if req.ProviderResponseID == nil {
		// owner never got far enough to receive a provider id; nothing to
		// poll against yet.
		return TurnResult{Status: TurnWaiting, RequestID: req.ID}, nil
	}

	desc, err := e.Registry.Resolve(req.Model)
	if err != nil {
		return TurnResult{}, err
	}
	deferred, ok := e.Upstreams.DeferredFor(desc.ID.Provider)
	if !ok {
		return TurnResult{}, errs.New(errs.KindInternal, fmt.Sprintf("provider %s no longer exposes a deferred endpoint", desc.ID.Provider))
	}

	budget := time.Duration(waitMs) * time.Millisecond
	if budget <= 0 {
		budget = defaultOverallTimeout
	}
	if err := e.Limits.Acquire(ctx, desc.ID.Provider); err != nil {
		return TurnResult{}, fmt.Errorf("acquiring provider slot: %w", err)
	}
	defer e.Limits.Release(desc.ID.Provider)

	return e.pollLoop(ctx, deferred, req.ID, *req.ProviderResponseID, budget)
}

func (e *Engine) resolveConversation(ctx context.Context, conversationID *int64) (int64, bool, error) {
	if conversationID != nil {
		conv, err := e.Store.GetConversation(ctx, *conversationID)
		if err != nil {
			return 0, false, fmt.Errorf("loading conversation: %w", err)
		}
		if conv != nil {
			return conv.ID, false, nil
		}
	}
	conv, err := e.Store.CreateConversation(ctx, nil, nil)
	if err != nil {
		return 0, false, fmt.Errorf("creating conversation: %w", err)
	}
	return conv.ID, true, nil
}

func isTerminalFailure(s store.Status) bool {
	switch s {
	case store.StatusFailed, store.StatusCancelled, store.StatusExpired:
		return true
	default:
		return false
	}
}

func (e *Engine) completedResult(req *store.Request) TurnResult {
	res := TurnResult{Status: TurnCompleted, RequestID: req.ID}
	if req.OutputText != nil {
		res.Text = *req.OutputText
	}
	if req.UsageJSON != nil {
		var u upstream.Usage
		if err := json.Unmarshal([]byte(*req.UsageJSON), &u); err == nil {
			res.Usage = &u
		}
	}
	return res
}

func (e *Engine) failureResult(req *store.Request) TurnResult {
	res := TurnResult{Status: TurnError, RequestID: req.ID}
	if req.ErrorJSON != nil {
		res.Err = fmt.Errorf("%s", *req.ErrorJSON)
	} else {
		res.Err = fmt.Errorf("request %d ended in status %s", req.ID, req.Status)
	}
	return res
}

// canonicalHistoryInput renders the trimmed history as one plain-text
// prompt, used by degradeSync for providers without a deferred endpoint.
func canonicalHistoryInput(history []store.Message) string {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func toHistoryMessages(history []store.Message) []upstream.HistoryMessage {
	out := make([]upstream.HistoryMessage, 0, len(history))
	for _, m := range history {
		out = append(out, upstream.HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func newStandInProviderResponseID() string {
	return "sync-" + uuid.NewString()
}
