package registry

// table is the compile-time registry of every model this gateway knows how
// to route, independent of which providers are actually configured at
// runtime. Adding or removing a model is a compile-time change (spec.md
// §4.1): there is no runtime registration API.
var table = []Descriptor{
	{
		ID:               ID{Provider: OpenAI, Name: "gpt-5"},
		Reasoning:        true,
		StructuredOutput: true,
		SupportsAsync:    true,
		Defaults:         Defaults{ReasoningEffort: EffortMedium, Verbosity: VerbosityMedium},
		Capabilities:     Capabilities{Speed: "medium", Intelligence: "very high", ContextWindow: 400000, Vision: true},
	},
	{
		ID:               ID{Provider: OpenAI, Name: "gpt-5-mini"},
		Reasoning:        true,
		StructuredOutput: true,
		SupportsAsync:    true,
		Defaults:         Defaults{ReasoningEffort: EffortMedium, Verbosity: VerbosityMedium},
		Capabilities:     Capabilities{Speed: "fast", Intelligence: "high", ContextWindow: 400000, Vision: true},
	},
	{
		ID:               ID{Provider: OpenAI, Name: "o3"},
		Reasoning:        true,
		StructuredOutput: true,
		SupportsAsync:    true,
		Defaults:         Defaults{ReasoningEffort: EffortMedium},
		Capabilities:     Capabilities{Speed: "slow", Intelligence: "very high", ContextWindow: 200000},
	},
	{
		ID:               ID{Provider: OpenAI, Name: "gpt-4.1"},
		Reasoning:        false,
		StructuredOutput: true,
		SupportsAsync:    true,
		Capabilities:     Capabilities{Speed: "medium", Intelligence: "high", ContextWindow: 1000000, Vision: true},
	},
	{
		ID:               ID{Provider: OpenAI, Name: "gpt-4.1-nano"},
		Reasoning:        false,
		StructuredOutput: true,
		SupportsAsync:    false,
		Capabilities:     Capabilities{Speed: "fast", Intelligence: "medium", ContextWindow: 1000000},
	},
	{
		ID:               ID{Provider: Google, Name: "gemini-2.5-pro"},
		Reasoning:        true,
		StructuredOutput: true,
		Defaults:         Defaults{ReasoningEffort: EffortMedium},
		Capabilities:     Capabilities{Speed: "medium", Intelligence: "very high", ContextWindow: 2000000, Vision: true, Audio: true},
	},
	{
		ID:               ID{Provider: Google, Name: "gemini-2.5-flash"},
		Reasoning:        false,
		StructuredOutput: true,
		Capabilities:     Capabilities{Speed: "fast", Intelligence: "high", ContextWindow: 1000000, Vision: true},
	},
	{
		ID:               ID{Provider: Anthropic, Name: "claude-opus-4"},
		Reasoning:        true,
		StructuredOutput: false,
		Defaults:         Defaults{ReasoningEffort: EffortMedium},
		Capabilities:     Capabilities{Speed: "slow", Intelligence: "very high", ContextWindow: 200000, Vision: true},
	},
	{
		ID:               ID{Provider: Anthropic, Name: "claude-sonnet-4"},
		Reasoning:        false,
		StructuredOutput: false,
		Capabilities:     Capabilities{Speed: "medium", Intelligence: "high", ContextWindow: 200000, Vision: true},
	},
	{
		ID:               ID{Provider: Anthropic, Name: "claude-haiku-3.5"},
		Reasoning:        false,
		StructuredOutput: false,
		Capabilities:     Capabilities{Speed: "fast", Intelligence: "medium", ContextWindow: 200000},
	},
	{
		ID:               ID{Provider: XAI, Name: "grok-4"},
		Reasoning:        true,
		StructuredOutput: true,
		Defaults:         Defaults{ReasoningEffort: EffortMedium},
		Capabilities:     Capabilities{Speed: "medium", Intelligence: "very high", ContextWindow: 256000},
	},
	{
		ID:               ID{Provider: XAI, Name: "grok-4-fast"},
		Reasoning:        false,
		StructuredOutput: true,
		Capabilities:     Capabilities{Speed: "fast", Intelligence: "high", ContextWindow: 256000},
	},
}
