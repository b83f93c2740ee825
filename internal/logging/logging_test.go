package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCallLogsSuccessAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	ToolCall(log, "advice", nil, map[string]any{"model": "openai:gpt-4.1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "advice", entry["method"])
	require.Equal(t, "openai:gpt-4.1", entry["model"])
}

func TestToolCallLogsErrorAtWarn(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	ToolCall(log, "advice", assert.AnError, nil)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.NotEmpty(t, entry["error"])
}

func TestNewDefaultsToInfoLevel(t *testing.T) {
	t.Setenv("MODELGATE_LOG_LEVEL", "")
	log := New(false)
	require.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewHonorsLogLevelEnvVar(t *testing.T) {
	t.Setenv("MODELGATE_LOG_LEVEL", "debug")
	log := New(false)
	require.Equal(t, zerolog.DebugLevel, log.GetLevel())
}
