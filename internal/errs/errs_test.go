package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		KindParseError:     -32700,
		KindInvalidRequest: -32600,
		KindMethodNotFound: -32601,
		KindInvalidParams:  -32602,
		KindInternal:       -32603,
		KindProviderError:  -32000,
		KindModelNotFound:  -32001,
		KindAuthError:      -32002,
		KindRateLimit:      -32003,
	}
	for kind, code := range cases {
		assert.Equal(t, code, Code(kind), "kind=%s", kind)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("socket reset")
	err := Wrap(KindProviderError, "upstream call failed", cause)

	te, ok := As(err)
	if assert.True(t, ok) {
		assert.Equal(t, KindProviderError, te.Kind)
	}
	assert.ErrorIs(t, err, cause)
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("plain error")))
}

func TestWithData(t *testing.T) {
	err := New(KindModelNotFound, "model not found").WithData(map[string]any{
		"availableModels": []string{"openai:gpt-5"},
	})
	assert.Contains(t, err.Data, "availableModels")
}
