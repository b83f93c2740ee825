// Package logging configures the process-wide structured logger. Since the
// gateway speaks line-delimited JSON-RPC over stdout, all log output goes
// to stderr — mirrors the request logging in agentoven-agentoven's
// api/middleware.Logger, adapted from per-HTTP-request fields to
// per-RPC-call fields.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. Level is read from MODELGATE_LOG_LEVEL
// (debug|info|warn|error), defaulting to info. Output is newline-delimited
// JSON unless pretty is true, in which case it's zerolog's human-readable
// console writer (useful when running modelgated by hand in a terminal).
func New(pretty bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv("MODELGATE_LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ToolCall logs a single JSON-RPC tool invocation at the appropriate level:
// info on success, warn on any error.
func ToolCall(log zerolog.Logger, method string, err error, fields map[string]any) {
	event := log.Info()
	if err != nil {
		event = log.Warn()
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event = event.Str("method", method)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("rpc call")
}
