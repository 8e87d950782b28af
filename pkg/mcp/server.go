// Package mcp exposes the converter to MCP clients over stdio: statement
// scanning, specifier resolution, audits and per-file transforms.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/esmpack/pkg/audit"
	"github.com/gnana997/esmpack/pkg/mcplog"
	"github.com/gnana997/esmpack/pkg/workspace"
)

// Server serves the esmpack tools for one initialized workspace.
type Server struct {
	mcpServer *server.MCPServer
	ws        *workspace.Workspace
	auditor   *audit.Auditor
	calls     *mcplog.Logger
}

// NewServer registers the tools. calls may be nil to disable the call
// log.
func NewServer(ws *workspace.Workspace, auditor *audit.Auditor, calls *mcplog.Logger, version string) *Server {
	s := &Server{ws: ws, auditor: auditor, calls: calls}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if calls != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer("esmpack", version, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: scanStatementsTool(), Handler: s.handleScanStatements},
		server.ServerTool{Tool: resolveSpecifierTool(), Handler: s.handleResolveSpecifier},
		server.ServerTool{Tool: auditFileTool(), Handler: s.handleAuditFile},
		server.ServerTool{Tool: transformFileTool(), Handler: s.handleTransformFile},
		server.ServerTool{Tool: buildTool(), Handler: s.handleBuild},
	)
	return s
}

// ServeStdio serves on stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
