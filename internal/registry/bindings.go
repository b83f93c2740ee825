package registry

import "os"

// Binding is a provider's resolved credentials, derived from the
// environment once at startup and never mutated (spec.md §3).
type Binding struct {
	Provider Provider
	APIKey   string
	BaseURL  string
}

// envSpec names, in priority order, the environment variables a provider's
// api key may be read from — first non-empty wins (spec.md §6).
var envSpec = map[Provider][]string{
	OpenAI:    {"OPENAI_API_KEY"},
	Google:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	Anthropic: {"ANTHROPIC_API_KEY"},
	XAI:       {"XAI_API_KEY", "GROK_API_KEY"},
}

var baseURLEnvSpec = map[Provider]string{
	OpenAI:    "OPENAI_BASE_URL",
	Google:    "GOOGLE_BASE_URL",
	Anthropic: "ANTHROPIC_BASE_URL",
	XAI:       "XAI_BASE_URL",
}

// LoadBindingsFromEnv constructs one Binding per provider that has a
// non-empty api key somewhere in the environment. Providers without a key
// are simply absent from the result — callers ask Registry.Configured.
func LoadBindingsFromEnv() map[Provider]Binding {
	return loadBindings(os.LookupEnv)
}

func loadBindings(lookup func(string) (string, bool)) map[Provider]Binding {
	out := make(map[Provider]Binding)
	for provider, names := range envSpec {
		for _, name := range names {
			if val, ok := lookup(name); ok && val != "" {
				out[provider] = Binding{
					Provider: provider,
					APIKey:   val,
					BaseURL:  firstNonEmpty(lookup, baseURLEnvSpec[provider]),
				}
				break
			}
		}
	}
	return out
}

func firstNonEmpty(lookup func(string) (string, bool), name string) string {
	if name == "" {
		return ""
	}
	if val, ok := lookup(name); ok {
		return val
	}
	return ""
}

// EnvVarHints returns, per provider, the environment variable name a caller
// should set — used by the `models` tool's quickSetup hint (spec.md §4.6).
func EnvVarHints() map[Provider]string {
	return map[Provider]string{
		OpenAI:    "OPENAI_API_KEY",
		Google:    "GOOGLE_API_KEY or GEMINI_API_KEY",
		Anthropic: "ANTHROPIC_API_KEY",
		XAI:       "XAI_API_KEY or GROK_API_KEY",
	}
}
