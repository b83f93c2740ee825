package asyncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelgate/modelgate/internal/registry"
	"github.com/modelgate/modelgate/internal/retrying"
	"github.com/modelgate/modelgate/internal/store"
	"github.com/modelgate/modelgate/internal/upstream"
)

// startJob implements spec.md §4.4 step 7: mark the request started, open
// the upstream job, and either persist an immediate result or begin
// polling.
func (e *Engine) startJob(ctx context.Context, req *store.Request, desc registry.Descriptor, history []store.Message, opts Options, overall time.Duration) (TurnResult, error) {
	if err := e.Limits.Acquire(ctx, desc.ID.Provider); err != nil {
		return TurnResult{}, fmt.Errorf("acquiring provider slot: %w", err)
	}
	defer e.Limits.Release(desc.ID.Provider)

	client, ok := e.Upstreams.For(desc.ID.Provider)
	if !ok {
		e.persistFailure(ctx, req.ID, fmt.Errorf("provider %s is not configured", desc.ID.Provider))
		return e.loadFailure(ctx, req.ID)
	}

	callOpts := upstream.Options{
		ReasoningEffort:     opts.ReasoningEffort,
		Verbosity:           opts.Verbosity,
		Temperature:         opts.Temperature,
		MaxCompletionTokens: opts.MaxCompletionTokens,
	}

	deferred, hasDeferred := e.Upstreams.DeferredFor(desc.ID.Provider)
	if !hasDeferred {
		return e.degradeSync(ctx, req, client, desc.ID.Name, history, callOpts, overall)
	}

	providerResponseID, immediate, err := deferred.StartDeferred(ctx, desc.ID.Name, toHistoryMessages(history), callOpts)
	if err != nil {
		e.persistFailure(ctx, req.ID, err)
		return e.loadFailure(ctx, req.ID)
	}

	if immediate != nil {
		if err := e.Store.MarkStarted(ctx, req.ID, &providerResponseID); err != nil {
			return TurnResult{}, fmt.Errorf("marking request started: %w", err)
		}
		return e.persistCompletionAndAppend(ctx, req, *immediate, nil)
	}

	if err := e.Store.MarkStarted(ctx, req.ID, &providerResponseID); err != nil {
		return TurnResult{}, fmt.Errorf("marking request started: %w", err)
	}

	return e.pollLoop(ctx, deferred, req.ID, providerResponseID, overall)
}

// degradeSync implements the "other providers ... degrade gracefully to a
// single synchronous call wrapped in the same persistence" clause of
// spec.md §4.4, standing in a synthetic providerResponseId so the request
// still carries one for observability/joins, even though nothing is polled.
func (e *Engine) degradeSync(ctx context.Context, req *store.Request, client upstream.Client, model string, history []store.Message, opts upstream.Options, overall time.Duration) (TurnResult, error) {
	standIn := newStandInProviderResponseID()
	if err := e.Store.MarkStarted(ctx, req.ID, &standIn); err != nil {
		return TurnResult{}, fmt.Errorf("marking request started: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	result, err := client.GenerateText(callCtx, model, canonicalHistoryInput(history), opts)
	if err != nil {
		e.persistFailure(ctx, req.ID, err)
		return e.loadFailure(ctx, req.ID)
	}
	return e.persistCompletionAndAppend(ctx, req, result, nil)
}

// pollLoop implements spec.md §4.4 step 8-9: sleep, query, repeat with a
// growing delay until the budget elapses or the job reaches a terminal
// state.
func (e *Engine) pollLoop(ctx context.Context, client upstream.DeferredClient, requestID int64, providerResponseID string, budget time.Duration) (TurnResult, error) {
	deadline := time.Now().Add(budget)
	delay := retrying.NewPollDelay(initialPollDelay, maxPollDelay)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return TurnResult{Status: TurnWaiting, RequestID: requestID, ProviderResponseID: providerResponseID}, nil
		}
		sleepFor := delay.Next()
		if sleepFor > remaining {
			sleepFor = remaining
		}
		if err := retrying.Sleep(ctx, sleepFor); err != nil {
			return TurnResult{}, err
		}

		status, err := client.PollDeferred(ctx, providerResponseID)
		if err != nil {
			e.persistFailure(ctx, requestID, err)
			return e.loadFailure(ctx, requestID)
		}

		switch status.Status {
		case "completed":
			result := upstream.TextResult{}
			if status.Result != nil {
				result = *status.Result
			}
			req, loadErr := e.Store.GetRequest(ctx, requestID)
			if loadErr != nil {
				return TurnResult{}, fmt.Errorf("reloading request: %w", loadErr)
			}
			return e.persistCompletionAndAppend(ctx, req, result, status.Usage)
		case "failed", "cancelled", "expired":
			cause := status.Err
			if cause == nil {
				cause = fmt.Errorf("upstream job ended with status %s", status.Status)
			}
			e.persistTerminalStatus(ctx, requestID, store.Status(status.Status), cause)
			return e.loadFailure(ctx, requestID)
		default:
			if err := e.Store.TouchInProgress(ctx, requestID); err != nil {
				return TurnResult{}, fmt.Errorf("touching in-progress request: %w", err)
			}
		}

		if time.Until(deadline) <= 0 {
			return TurnResult{Status: TurnWaiting, RequestID: requestID, ProviderResponseID: providerResponseID}, nil
		}
	}
}

func (e *Engine) persistCompletionAndAppend(ctx context.Context, req *store.Request, result upstream.TextResult, usageOverride *upstream.Usage) (TurnResult, error) {
	usage := result.Usage
	if usageOverride != nil {
		usage = *usageOverride
	}
	usageJSON, err := json.Marshal(usage)
	if err != nil {
		return TurnResult{}, fmt.Errorf("encoding usage: %w", err)
	}
	rawJSON, err := json.Marshal(result)
	if err != nil {
		return TurnResult{}, fmt.Errorf("encoding result: %w", err)
	}
	if err := e.Store.SaveCompletion(ctx, req.ID, result.Text, rawJSON, usageJSON); err != nil {
		return TurnResult{}, fmt.Errorf("saving completion: %w", err)
	}
	reqID := req.ID
	if _, err := e.Store.AppendMessage(ctx, req.ConversationID, "assistant", result.Text, &reqID); err != nil {
		return TurnResult{}, fmt.Errorf("appending assistant message: %w", err)
	}
	return TurnResult{Status: TurnCompleted, RequestID: req.ID, Text: result.Text, Usage: &usage}, nil
}

func (e *Engine) persistFailure(ctx context.Context, requestID int64, cause error) {
	e.persistTerminalStatus(ctx, requestID, store.StatusFailed, cause)
}

func (e *Engine) persistTerminalStatus(ctx context.Context, requestID int64, status store.Status, cause error) {
	errorJSON, _ := json.Marshal(map[string]string{"kind": string(status), "message": cause.Error()})
	var err error
	switch status {
	case store.StatusCancelled:
		err = e.Store.SaveCancellation(ctx, requestID)
	case store.StatusExpired:
		err = e.Store.SaveExpiry(ctx, requestID, errorJSON)
	default:
		err = e.Store.SaveFailure(ctx, requestID, errorJSON)
	}
	if err != nil {
		e.Log.Error().Int64("request_id", requestID).Err(err).Msg("failed to persist terminal request status")
	}
}

func (e *Engine) loadFailure(ctx context.Context, requestID int64) (TurnResult, error) {
	req, err := e.Store.GetRequest(ctx, requestID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("reloading failed request: %w", err)
	}
	return e.failureResult(req), nil
}
