// Package gateway is the Tool Router (spec.md §4.6): it exposes models,
// advice, and idiom to the RPC dispatcher, translating between mcp-go's
// CallToolRequest/CallToolResult and the Sync/Async Engines.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/modelgate/modelgate/internal/asyncengine"
	"github.com/modelgate/modelgate/internal/errs"
	"github.com/modelgate/modelgate/internal/logging"
	"github.com/modelgate/modelgate/internal/registry"
	"github.com/modelgate/modelgate/internal/syncengine"
)

// Router owns the four tool handlers and wires them onto an *server.MCPServer.
type Router struct {
	Registry  *registry.Registry
	Sync      *syncengine.Engine
	Async     *asyncengine.Engine
	Log       zerolog.Logger
	startedAt time.Time
}

// New builds a Router over the already-constructed engines. startedAt is
// recorded here so the health tool can report process uptime.
func New(reg *registry.Registry, sync *syncengine.Engine, async *asyncengine.Engine, log zerolog.Logger) *Router {
	return &Router{Registry: reg, Sync: sync, Async: async, Log: log, startedAt: time.Now()}
}

// Register adds all four tools to s.
func (rt *Router) Register(s *server.MCPServer) {
	s.AddTool(modelsTool, rt.handleModels)
	s.AddTool(adviceTool, rt.handleAdvice)
	s.AddTool(idiomTool, rt.handleIdiom)
	s.AddTool(healthTool, rt.handleHealth)
}

func (rt *Router) handleModels(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	detailed := request.GetBool("detailed", false)
	if !detailed {
		ids := rt.Registry.List()
		raw, err := json.MarshalIndent(ids, "", "  ")
		logging.ToolCall(rt.Log, "models", err, map[string]any{"detailed": detailed, "count": len(ids)})
		if err != nil {
			return errorResult(errs.Wrap(errs.KindInternal, "encoding model list", err)), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
	return rt.handleDetailedModels()
}

func (rt *Router) handleDetailedModels() (*mcp.CallToolResult, error) {
	entries := rt.Registry.ListDetailed()
	hints := registry.EnvVarHints()

	providers := map[string]any{}
	totalConfigured := 0
	for _, p := range registry.AllProviders() {
		configured := rt.Registry.Configured(p)
		if configured {
			totalConfigured++
		}
		apiKeyStatus := "configured"
		if !configured {
			apiKeyStatus = fmt.Sprintf("not set (%s)", hints[p])
		}
		providers[string(p)] = map[string]any{
			"configured": configured,
			"apiKey":     apiKeyStatus,
		}
	}

	models := make([]map[string]any, 0, len(entries))
	liveCount := 0
	for _, e := range entries {
		if e.Configured {
			liveCount++
		}
		models = append(models, map[string]any{
			"id":            e.ID,
			"provider":      string(e.Provider),
			"configured":    e.Configured,
			"supportsAsync": e.SupportsAsync,
			"capabilities": map[string]any{
				"speed":         e.Capabilities.Speed,
				"intelligence":  e.Capabilities.Intelligence,
				"contextWindow": e.Capabilities.ContextWindow,
				"vision":        e.Capabilities.Vision,
				"audio":         e.Capabilities.Audio,
			},
		})
	}

	body := map[string]any{
		"providers": providers,
		"models":    models,
		"summary": map[string]any{
			"totalProvidersConfigured": totalConfigured,
			"totalModelsAvailable":     liveCount,
			"readyToUse":               totalConfigured > 0,
		},
	}
	if totalConfigured == 0 {
		body["quickSetup"] = hints
	}

	raw, err := json.MarshalIndent(body, "", "  ")
	logging.ToolCall(rt.Log, "models", err, map[string]any{"detailed": true, "providersConfigured": totalConfigured})
	if err != nil {
		return errorResult(errs.Wrap(errs.KindInternal, "encoding detailed models", err)), nil
	}
	result := mcp.NewToolResultText(string(raw))
	result.StructuredContent = body
	return result, nil
}

func (rt *Router) handleAdvice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	checkStatus := request.GetBool("check_status", false)
	requestID := int64(request.GetFloat("request_id", 0))

	if checkStatus || requestID != 0 {
		if requestID == 0 {
			return errorResult(errs.New(errs.KindInvalidParams, "request_id is required when check_status is set")), nil
		}
		waitMs := int64(request.GetFloat("wait_timeout_ms", 0))
		result, err := rt.Async.CheckOrWait(ctx, requestID, waitMs)
		logging.ToolCall(rt.Log, "advice", err, map[string]any{"request_id": requestID, "check_status": true})
		if err != nil {
			return errorResult(err), nil
		}
		return adviceResultFromTurn(result), nil
	}

	model := request.GetString("model", "")
	if strings.TrimSpace(model) == "" {
		return errorResult(errs.New(errs.KindInvalidParams, "model cannot be empty")), nil
	}
	prompt := request.GetString("prompt", "")
	if strings.TrimSpace(prompt) == "" {
		return errorResult(errs.New(errs.KindInvalidParams, "prompt cannot be empty")), nil
	}

	desc, err := rt.Registry.Resolve(model)
	if err != nil {
		return errorResult(err), nil
	}

	convIDFloat := request.GetFloat("conversation_id", 0)
	waitMs := request.GetFloat("wait_timeout_ms", 0)

	// A model with a deferred upstream endpoint that is called with an
	// explicit conversation_id routes through the persisted Async Engine;
	// every other call goes to the Sync Engine.
	if desc.SupportsAsync && convIDFloat != 0 {
		convID := int64(convIDFloat)
		opts := asyncengine.Options{
			ReasoningEffort:     registry.Effort(request.GetString("reasoning_effort", "")),
			Verbosity:           registry.Verbosity(request.GetString("verbosity", "")),
			Temperature:         optionalFloat(request, "temperature"),
			MaxCompletionTokens: optionalInt(request, "max_completion_tokens"),
		}
		if waitMs > 0 {
			opts.OverallTimeout = durationFromMs(waitMs)
		}
		result, err := rt.Async.RunTurn(ctx, &convID, prompt, model, opts)
		logging.ToolCall(rt.Log, "advice", err, map[string]any{"model": model, "conversation_id": convID})
		if err != nil {
			return errorResult(err), nil
		}
		return adviceResultFromTurn(result), nil
	}

	opts := syncengine.Options{
		ReasoningEffort:     registry.Effort(request.GetString("reasoning_effort", "")),
		Verbosity:           registry.Verbosity(request.GetString("verbosity", "")),
		AdditionalContext:   request.GetString("additional_context", ""),
		Temperature:         optionalFloat(request, "temperature"),
		MaxCompletionTokens: optionalInt(request, "max_completion_tokens"),
	}
	res, err := rt.Sync.Advise(ctx, model, prompt, opts, syncengine.AdviceResponseSchema)
	logging.ToolCall(rt.Log, "advice", err, map[string]any{"model": model})
	if err != nil {
		return errorResult(err), nil
	}

	body := map[string]any{
		"status":       res.Meta.Status,
		"fallbackMode": res.Meta.FallbackMode,
	}
	if res.Meta.ContextRequest != nil {
		body["contextRequest"] = res.Meta.ContextRequest
	}
	result := mcp.NewToolResultText(res.Text)
	result.StructuredContent = map[string]any{"metadata": body}
	return result, nil
}

func (rt *Router) handleIdiom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := request.RequireString("task")
	if err != nil || strings.TrimSpace(task) == "" {
		return errorResult(errs.New(errs.KindInvalidParams, "task cannot be empty")), nil
	}

	model := request.GetString("model", defaultIdiomModel)
	currentApproach := request.GetString("current_approach", "")
	callerContext := request.GetString("context", "")

	prompt := buildIdiomPrompt(task, currentApproach, callerContext)

	res, err := rt.Sync.Advise(ctx, model, prompt, syncengine.Options{}, syncengine.IdiomResponseSchema)
	logging.ToolCall(rt.Log, "idiom", err, map[string]any{"model": model})
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(res.Text), nil
}

// handleHealth answers the liveness check SPEC_FULL.md §6.6 adds on top of
// spec.md's three tools: no required args, {ok, storeOpen, uptimeSeconds}.
func (rt *Router) handleHealth(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	storeOpen := rt.Async.Store.Ping() == nil
	uptime := time.Since(rt.startedAt).Seconds()

	body := map[string]any{
		"ok":            storeOpen,
		"storeOpen":     storeOpen,
		"uptimeSeconds": uptime,
	}
	logging.ToolCall(rt.Log, "health", nil, map[string]any{"storeOpen": storeOpen})

	raw, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return errorResult(errs.Wrap(errs.KindInternal, "encoding health", err)), nil
	}
	result := mcp.NewToolResultText(string(raw))
	result.StructuredContent = body
	return result, nil
}

func adviceResultFromTurn(t asyncengine.TurnResult) *mcp.CallToolResult {
	body := map[string]any{
		"status":     string(t.Status),
		"request_id": t.RequestID,
	}
	if t.Status == asyncengine.TurnError && t.Err != nil {
		body["error"] = t.Err.Error()
	}
	result := mcp.NewToolResultText(t.Text)
	result.StructuredContent = map[string]any{"metadata": body}
	return result
}

func optionalFloat(request mcp.CallToolRequest, key string) *float64 {
	args := request.GetArguments()
	if args == nil {
		return nil
	}
	if v, ok := args[key]; ok {
		if f, ok := v.(float64); ok {
			return &f
		}
	}
	return nil
}

func optionalInt(request mcp.CallToolRequest, key string) *int {
	f := optionalFloat(request, key)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
