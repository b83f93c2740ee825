package upstream

import "github.com/modelgate/modelgate/internal/registry"

// Set holds one Client per configured provider, built once at startup from
// the registry's bindings (spec.md §3 — "Bindings are created once at
// startup and never mutated").
type Set struct {
	clients map[registry.Provider]Client
}

// NewSet builds a Set from the bindings a Registry exposes.
func NewSet(bindings map[registry.Provider]registry.Binding) *Set {
	s := &Set{clients: make(map[registry.Provider]Client, len(bindings))}
	for provider, b := range bindings {
		switch provider {
		case registry.OpenAI:
			s.clients[provider] = NewOpenAIClient(b)
		case registry.Google:
			s.clients[provider] = NewGoogleClient(b)
		case registry.Anthropic:
			s.clients[provider] = NewAnthropicClient(b)
		case registry.XAI:
			s.clients[provider] = NewXAIClient(b)
		}
	}
	return s
}

// For returns the client bound to a provider, if configured.
func (s *Set) For(p registry.Provider) (Client, bool) {
	c, ok := s.clients[p]
	return c, ok
}

// DeferredFor returns the client as a DeferredClient when that provider
// exposes a deferred-completion endpoint; the async engine degrades
// gracefully to a single synchronous call for every other provider
// (spec.md §4.4).
func (s *Set) DeferredFor(p registry.Provider) (DeferredClient, bool) {
	c, ok := s.clients[p]
	if !ok {
		return nil, false
	}
	dc, ok := c.(DeferredClient)
	return dc, ok
}
