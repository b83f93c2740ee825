package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/modelgate/modelgate/internal/capcache"
	"github.com/modelgate/modelgate/internal/errs"
	"github.com/modelgate/modelgate/internal/limiter"
	"github.com/modelgate/modelgate/internal/registry"
	"github.com/modelgate/modelgate/internal/retrying"
	"github.com/modelgate/modelgate/internal/upstream"
)

// ProviderResolver is satisfied by *upstream.Set; declared here so tests
// can substitute a fake set of clients without touching the upstream
// package.
type ProviderResolver interface {
	For(p registry.Provider) (upstream.Client, bool)
}

// Engine drives the Sync Engine's advice path (spec.md §4.3).
type Engine struct {
	Registry  *registry.Registry
	Upstreams ProviderResolver
	Caps      *capcache.Cache
	Limits    *limiter.Table
	Log       zerolog.Logger
}

// New builds a Sync Engine over the process-wide singletons (spec.md §9,
// "Global singletons").
func New(reg *registry.Registry, upstreams ProviderResolver, caps *capcache.Cache, limits *limiter.Table, log zerolog.Logger) *Engine {
	return &Engine{Registry: reg, Upstreams: upstreams, Caps: caps, Limits: limits, Log: log}
}

const maxRetries = 2

// Advise implements the public contract `advise(modelId, prompt, opts) →
// {text, meta}` (spec.md §4.3), running the structured/text call under
// schema.
func (e *Engine) Advise(ctx context.Context, modelID, prompt string, opts Options, schema Schema) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return Result{}, errs.New(errs.KindInvalidParams, "prompt cannot be empty")
	}

	desc, err := e.Registry.Resolve(modelID)
	if err != nil {
		return Result{}, err
	}

	iteration := opts.Iteration
	if iteration <= 0 {
		iteration = 1
	}
	if iteration > maxIterations {
		return Result{
			Text: "max iterations reached",
			Meta: Meta{Status: "complete", FallbackMode: true},
		}, nil
	}

	client, ok := e.Upstreams.For(desc.ID.Provider)
	if !ok {
		return Result{}, errs.New(errs.KindProviderError, fmt.Sprintf("provider %s is not configured", desc.ID.Provider))
	}

	callOpts := upstream.Options{Temperature: opts.Temperature, MaxCompletionTokens: opts.MaxCompletionTokens}
	if desc.ID.Provider == registry.OpenAI && desc.Reasoning && upstream.IsReasoningName(desc.ID.Name) {
		effort := opts.ReasoningEffort
		if effort == "" {
			effort = desc.Defaults.ReasoningEffort
		}
		callOpts.ReasoningEffort = effort
		if upstream.IsGPT5Name(desc.ID.Name) {
			verbosity := opts.Verbosity
			if verbosity == "" {
				verbosity = desc.Defaults.Verbosity
			}
			callOpts.Verbosity = verbosity
		}
	}

	finalPrompt := prompt
	if opts.AdditionalContext != "" {
		finalPrompt = prompt + "\n\nAdditional Context Provided:\n" + opts.AdditionalContext
	}

	if err := e.Limits.Acquire(ctx, desc.ID.Provider); err != nil {
		return Result{}, fmt.Errorf("acquiring provider slot: %w", err)
	}
	defer e.Limits.Release(desc.ID.Provider)

	timeouts := upstream.TimeoutsFor(desc.ID.Name)

	if e.supportsStructured(ctx, client, desc, timeouts) {
		result, err := e.callStructured(ctx, client, desc.ID.Name, finalPrompt, callOpts, timeouts, schema)
		if err == nil {
			return result, nil
		}
		if !fallsBackToText(err) {
			return Result{}, mapUpstreamError(err)
		}
		e.Caps.Set(desc.ID.String(), false)
		e.Log.Warn().Str("model", desc.ID.String()).Err(err).Msg("structured output rejected, falling back to text mode")
	}

	return e.callText(ctx, client, desc.ID.Name, finalPrompt, callOpts, timeouts)
}

// supportsStructured implements spec.md §4.3 step 4: cache lookup, then at
// most one shared probe, then the descriptor's static default as a
// fallback when neither the cache nor a returned probe has an answer.
func (e *Engine) supportsStructured(ctx context.Context, client upstream.Client, desc registry.Descriptor, timeouts upstream.Timeouts) bool {
	key := desc.ID.String()
	if v, ok := e.Caps.Lookup(key); ok {
		return v
	}

	start := time.Now()
	v, err := e.Caps.GetOrProbe(ctx, key, func(probeCtx context.Context) (bool, error) {
		probeCtx, cancel := context.WithTimeout(probeCtx, timeouts.Probe)
		defer cancel()
		_, err := client.GenerateStructured(probeCtx, desc.ID.Name, probePrompt, probeSchemaDefinition, upstream.Options{})
		if err == nil {
			return true, nil
		}
		var fe *upstream.FormatError
		if errors.As(err, &fe) {
			return false, nil
		}
		return false, err
	})
	elapsed := time.Since(start)

	if err != nil {
		e.Log.Debug().Str("event", "capability_probe").Str("model", key).
			Bool("result", desc.StructuredOutput).Dur("elapsed", elapsed).
			Err(err).Msg("probe inconclusive, using descriptor default")
		return desc.StructuredOutput
	}
	e.Log.Debug().Str("event", "capability_probe").Str("model", key).
		Bool("result", v).Dur("elapsed", elapsed).Msg("capability probe resolved")
	return v
}

// fallsBackToText reports whether an error from the structured-output
// endpoint should be treated as "this model can't reliably do structured
// output for this call" rather than a hard failure (spec.md §4.3 step 5:
// "On 400 / unsupported format / timeout").
func fallsBackToText(err error) bool {
	var fe *upstream.FormatError
	if errors.As(err, &fe) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) callStructured(ctx context.Context, client upstream.Client, model, prompt string, opts upstream.Options, timeouts upstream.Timeouts, schema Schema) (Result, error) {
	var raw []byte
	err := retrying.Do(ctx, maxRetries, func(attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, timeouts.Structured)
		defer cancel()
		res, err := client.GenerateStructured(callCtx, model, prompt, schema.Definition, opts)
		if err != nil {
			return retryableOrNot(err)
		}
		raw = res.Raw
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return schema.Decode(raw)
}

func (e *Engine) callText(ctx context.Context, client upstream.Client, model, prompt string, opts upstream.Options, timeouts upstream.Timeouts) (Result, error) {
	var text string
	err := retrying.Do(ctx, maxRetries, func(attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, timeouts.Overall)
		defer cancel()
		res, err := client.GenerateText(callCtx, model, prompt, opts)
		if err != nil {
			return retryableOrNot(err)
		}
		text = res.Text
		return nil
	})
	if err != nil {
		return Result{}, mapUpstreamError(err)
	}
	return Result{Text: text, Meta: Meta{Status: "complete", FallbackMode: true}}, nil
}

// retryableOrNot marks 429/5xx as retryable for retrying.Do (spec.md §4.3
// step 7); everything else surfaces on the first attempt.
func retryableOrNot(err error) error {
	if upstream.IsRetryable(err) {
		return retrying.MarkRetryable(err)
	}
	return err
}

// mapUpstreamError implements the §7 taxonomy mapping for upstream call
// failures.
func mapUpstreamError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindProviderError, "request timed out", err)
	}
	if upstream.IsAuthError(err) {
		return errs.Wrap(errs.KindAuthError, "upstream rejected the API key", err)
	}
	var rl *upstream.RateLimitError
	if errors.As(err, &rl) {
		data := map[string]any{}
		if rl.RetryAfterMs != nil {
			data["retryAfterMs"] = *rl.RetryAfterMs
		}
		return errs.Wrap(errs.KindRateLimit, "rate limited by upstream", err).WithData(data)
	}
	return errs.Wrap(errs.KindProviderError, "upstream call failed", err)
}
