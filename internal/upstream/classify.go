package upstream

import (
	"strings"
	"time"
)

// Class is a model's timeout class (spec.md §4.3).
type Class string

const (
	ClassFast      Class = "fast"
	ClassReasoning Class = "reasoning"
	ClassStandard  Class = "standard"
	ClassDefault   Class = "default"
)

// Timeouts is the (probe, structured, overall) timeout triple for a class.
type Timeouts struct {
	Probe      time.Duration
	Structured time.Duration
	Overall    time.Duration
}

var timeoutTable = map[Class]Timeouts{
	ClassReasoning: {Probe: 10 * time.Second, Structured: 120 * time.Second, Overall: 180 * time.Second},
	ClassStandard:  {Probe: 5 * time.Second, Structured: 60 * time.Second, Overall: 90 * time.Second},
	ClassFast:      {Probe: 3 * time.Second, Structured: 30 * time.Second, Overall: 45 * time.Second},
	ClassDefault:   {Probe: 5 * time.Second, Structured: 60 * time.Second, Overall: 90 * time.Second},
}

// fastMarkers, reasoningMarkers are substrings checked, in this order
// (fast first, then reasoning, then standard), against the model name
// (spec.md §4.3: "Classification is by substring match ... fast first,
// then reasoning, then standard").
var fastMarkers = []string{"mini", "flash", "nano", "haiku"}
var reasoningMarkers = []string{"o1", "o3", "o4", "gpt-5", "reasoning", "opus", "grok-4", "gemini-2.5-pro"}

// ClassifyModel determines a model's timeout class from its bare name
// (without the provider prefix).
func ClassifyModel(name string) Class {
	lower := strings.ToLower(name)
	for _, m := range fastMarkers {
		if strings.Contains(lower, m) {
			return ClassFast
		}
	}
	for _, m := range reasoningMarkers {
		if strings.Contains(lower, m) {
			return ClassReasoning
		}
	}
	return ClassStandard
}

// TimeoutsFor returns the timeout triple for a model name.
func TimeoutsFor(name string) Timeouts {
	class := ClassifyModel(name)
	if t, ok := timeoutTable[class]; ok {
		return t
	}
	return timeoutTable[ClassDefault]
}

// IsReasoningName reports whether a bare model name is reasoning-class by
// the name-substring rule (distinct from Descriptor.Reasoning, which is
// the static per-model capability flag; both must independently hold for
// spec.md §4.3 step 1's OpenAI reasoning-options assembly).
func IsReasoningName(name string) bool {
	return ClassifyModel(name) == ClassReasoning
}

// IsGPT5Name reports whether a model name begins with "gpt-5" (spec.md
// §4.3 step 1: verbosity is only assembled for gpt-5-prefixed models).
func IsGPT5Name(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "gpt-5")
}
