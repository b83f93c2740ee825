package gateway

import "github.com/mark3labs/mcp-go/mcp"

// modelsTool, adviceTool, and idiomTool are the three logical tools spec.md
// §4.6 exposes to the RPC dispatcher. Schemas are declared the way the
// teacher's integration tests build mcp.Tool values directly (mcp.Tool{...,
// InputSchema: mcp.ToolInputSchema{...}}) rather than through the
// mcp.NewTool builder, since several fields here (conversation_id,
// check_status) aren't simple scalars with a single builder option.
var modelsTool = mcp.Tool{
	Name:        "models",
	Description: "List configured and available language models across all providers.",
	InputSchema: mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"detailed": map[string]any{
				"type":        "boolean",
				"description": "Include per-provider configuration status and a quick-setup hint.",
			},
		},
	},
}

var adviceTool = mcp.Tool{
	Name: "advice",
	Description: "Ask a model for advice on a prompt, synchronously or as a " +
		"resumable background job for providers that support deferred completion.",
	InputSchema: mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"model":  map[string]any{"type": "string", "description": "Model id, e.g. openai:gpt-4.1"},
			"prompt": map[string]any{"type": "string", "description": "The question or task to send."},
			"reasoning_effort": map[string]any{
				"type": "string", "enum": []string{"minimal", "low", "medium", "high"},
			},
			"verbosity": map[string]any{
				"type": "string", "enum": []string{"low", "medium", "high"},
			},
			"conversation_id":        map[string]any{"type": "integer"},
			"request_id":             map[string]any{"type": "integer"},
			"check_status":           map[string]any{"type": "boolean"},
			"temperature":            map[string]any{"type": "number"},
			"max_completion_tokens":  map[string]any{"type": "integer"},
			"wait_timeout_ms":        map[string]any{"type": "integer"},
			"additional_context":     map[string]any{"type": "string"},
		},
	},
}

var idiomTool = mcp.Tool{
	Name: "idiom",
	Description: "Ask for idiomatic guidance on a coding task: recommended " +
		"approach, packages to use, anti-patterns to avoid.",
	InputSchema: mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"task":             map[string]any{"type": "string"},
			"current_approach": map[string]any{"type": "string"},
			"context":          map[string]any{"type": "string"},
			"model":            map[string]any{"type": "string"},
		},
		Required: []string{"task"},
	},
}

// healthTool is a liveness check: no required args, returning whether the
// store handle is still open and how long the process has been running.
var healthTool = mcp.Tool{
	Name:        "health",
	Description: "Report process liveness: store connectivity and uptime.",
	InputSchema: mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{},
	},
}
