package gateway

import (
	"fmt"
	"strings"
	"time"
)

const defaultIdiomModel = "openai:gpt-4.1"

// idiomSystemPromptTemplate is the fixed system prompt spec.md §4.6
// describes ("a fixed system-prompt template describing ecosystem,
// dependencies"). It is prepended to every idiom call so the model answers
// with the gateway's own conventions in mind rather than a generic one.
const idiomSystemPromptTemplate = `You are advising on idiomatic Go. Favor the
standard library and well-established ecosystem packages over hand-rolled
utilities. Call out anti-patterns explicitly. Keep example code short and
compilable.`

func buildIdiomPrompt(task, currentApproach, callerContext string) string {
	var b strings.Builder
	b.WriteString(idiomSystemPromptTemplate)
	b.WriteString("\n\nTask: ")
	b.WriteString(task)
	if currentApproach != "" {
		fmt.Fprintf(&b, "\n\nCurrent approach: %s", currentApproach)
	}
	if callerContext != "" {
		fmt.Fprintf(&b, "\n\nContext: %s", callerContext)
	}
	return b.String()
}

func durationFromMs(ms float64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
