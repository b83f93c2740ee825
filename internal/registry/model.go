// Package registry resolves model identifiers to descriptors and owns the
// per-provider API key bindings derived from the environment.
package registry

import (
	"fmt"
	"strings"

	"github.com/modelgate/modelgate/internal/errs"
)

// Provider is one of the four upstream model-serving backends.
type Provider string

const (
	OpenAI    Provider = "openai"
	Google    Provider = "google"
	Anthropic Provider = "anthropic"
	XAI       Provider = "xai"
)

// Effort is the reasoning-effort hint accepted by reasoning-class models.
type Effort string

const (
	EffortMinimal Effort = "minimal"
	EffortLow     Effort = "low"
	EffortMedium  Effort = "medium"
	EffortHigh    Effort = "high"
)

// Verbosity is the response-verbosity hint accepted by gpt-5-class models.
type Verbosity string

const (
	VerbosityLow    Verbosity = "low"
	VerbosityMedium Verbosity = "medium"
	VerbosityHigh   Verbosity = "high"
)

// ID is a parsed "<provider>:<name>" model identifier.
type ID struct {
	Provider Provider
	Name     string
}

func (id ID) String() string {
	return string(id.Provider) + ":" + id.Name
}

// ParseID parses a model identifier, failing with invalid-params (the
// spec names this failure "invalid-identifier"; it is surfaced on the wire
// as invalid-params since it is always the result of malformed caller input).
func ParseID(raw string) (ID, error) {
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 || idx == len(raw)-1 {
		return ID{}, errs.New(errs.KindInvalidParams, fmt.Sprintf("invalid model identifier %q: expected <provider>:<name>", raw))
	}
	provider := raw[:idx]
	name := raw[idx+1:]
	if provider == "" || name == "" {
		return ID{}, errs.New(errs.KindInvalidParams, fmt.Sprintf("invalid model identifier %q: expected <provider>:<name>", raw))
	}
	return ID{Provider: Provider(provider), Name: name}, nil
}

// Defaults holds the static per-model default hints.
type Defaults struct {
	ReasoningEffort Effort
	Verbosity       Verbosity
}

// Capabilities are advisory fields surfaced only by the `models` tool.
type Capabilities struct {
	Speed         string
	Intelligence  string
	ContextWindow int
	Vision        bool
	Audio         bool
}

// Descriptor is the immutable, process-lifetime description of one model.
type Descriptor struct {
	ID               ID
	Reasoning        bool
	StructuredOutput bool
	SupportsAsync    bool // deferred-completion endpoint exists upstream
	Defaults         Defaults
	Capabilities     Capabilities
}
