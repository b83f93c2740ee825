package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadBindingsFirstNonEmptyWins(t *testing.T) {
	env := map[string]string{
		"GEMINI_API_KEY": "gemini-key",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	bindings := loadBindings(lookup)
	b, ok := bindings[Google]
	if assert.True(t, ok) {
		assert.Equal(t, "gemini-key", b.APIKey)
	}
	_, ok = bindings[OpenAI]
	assert.False(t, ok)
}

func TestLoadBindingsPrefersFirstEnvName(t *testing.T) {
	env := map[string]string{
		"GOOGLE_API_KEY": "google-key",
		"GEMINI_API_KEY": "gemini-key",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	bindings := loadBindings(lookup)
	assert.Equal(t, "google-key", bindings[Google].APIKey)
}

func TestLoadBindingsEmptyEnv(t *testing.T) {
	bindings := loadBindings(func(string) (string, bool) { return "", false })
	assert.Empty(t, bindings)
}
