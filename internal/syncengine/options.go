// Package syncengine implements the Sync Engine (spec.md §4.3): a
// single-shot "advice" call that probes structured-output capability,
// retries transient upstream failures, and enforces per-provider
// concurrency and per-class timeouts.
package syncengine

import "github.com/modelgate/modelgate/internal/registry"

// Options carries the per-call hints a caller (the advice or idiom tool)
// supplies on top of a Descriptor's static defaults.
type Options struct {
	ReasoningEffort     registry.Effort
	Verbosity           registry.Verbosity
	AdditionalContext   string
	Iteration           int
	Temperature         *float64
	MaxCompletionTokens *int
}

const maxIterations = 3
