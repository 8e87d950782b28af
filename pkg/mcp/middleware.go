package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/esmpack/pkg/mcplog"
)

// loggingMiddleware appends one call log entry per tool call. Log write
// failures never affect the result.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)

			entry := mcplog.Entry{
				Time:          start.UTC().Format(time.RFC3339),
				Tool:          req.Params.Name,
				Params:        mcplog.SanitizeParams(req.GetArguments()),
				DurationMs:    time.Since(start).Milliseconds(),
				ResponseBytes: mcplog.ResponseBytes(result),
			}
			if result != nil && result.IsError {
				entry.IsError = true
			}
			if err != nil {
				entry.IsError = true
				entry.Error = err.Error()
			}
			_ = s.calls.Write(entry)
			return result, err
		}
	}
}
