package gateway

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/modelgate/modelgate/internal/errs"
)

// errorResult renders a taxonomy error the way spec.md §7 describes it on
// the wire: a numeric code, a message, and optional structured data
// (availableModels, retryAfterMs, …). Real MCP tool-call semantics deliver
// application errors as part of a successful response (isError: true)
// rather than a protocol-level JSON-RPC error, so the code/kind/data travel
// in StructuredContent where a caller can still recover them precisely;
// Content[0].Text carries only the human-readable message, without the code.
func errorResult(err error) *mcp.CallToolResult {
	taxErr, ok := errs.As(err)
	if !ok {
		taxErr = errs.Wrap(errs.KindInternal, "internal error", err)
	}

	code := errs.Code(taxErr.Kind)
	body := map[string]any{
		"code":    code,
		"kind":    string(taxErr.Kind),
		"message": taxErr.Error(),
	}
	if taxErr.Data != nil {
		body["data"] = taxErr.Data
	}

	result := mcp.NewToolResultError(taxErr.Error())
	result.StructuredContent = map[string]any{"error": body}
	return result
}
