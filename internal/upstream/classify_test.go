package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyModelFastBeatsReasoning(t *testing.T) {
	// gpt-5-mini contains both a fast marker ("mini") and a reasoning
	// marker ("gpt-5"); fast must win per spec.md §4.3.
	assert.Equal(t, ClassFast, ClassifyModel("gpt-5-mini"))
}

func TestClassifyModelReasoning(t *testing.T) {
	assert.Equal(t, ClassReasoning, ClassifyModel("o3"))
	assert.Equal(t, ClassReasoning, ClassifyModel("gpt-5"))
}

func TestClassifyModelStandardFallback(t *testing.T) {
	assert.Equal(t, ClassStandard, ClassifyModel("claude-sonnet-4"))
}

func TestTimeoutsForFast(t *testing.T) {
	tt := TimeoutsFor("gemini-2.5-flash")
	assert.Equal(t, timeoutTable[ClassFast], tt)
}

func TestIsGPT5Name(t *testing.T) {
	assert.True(t, IsGPT5Name("gpt-5-mini"))
	assert.False(t, IsGPT5Name("gpt-4.1"))
}
