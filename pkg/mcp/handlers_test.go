package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/esmpack/pkg/audit"
	"github.com/gnana997/esmpack/pkg/config"
	"github.com/gnana997/esmpack/pkg/mcplog"
	"github.com/gnana997/esmpack/pkg/workspace"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T, calls *mcplog.Logger) *Server {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"package.json":                  `{"name": "app", "dependencies": {"lit": "3"}}`,
		"src/app.js":                    "import { html } from 'lit';\nimport './util';\n",
		"src/util.js":                   "export const u = 1;\n",
		"src/legacy.js":                 "const fs = require('fs');\nmodule.exports = fs;\n",
		"node_modules/lit/package.json": `{"name": "lit", "module": "index.js"}`,
		"node_modules/lit/index.js":     "export const html = String.raw;\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := config.Default()
	cfg.OutDir = "dist"
	ws, err := workspace.New(cfg, root, workspace.Options{}, quiet())
	require.NoError(t, err)
	require.NoError(t, ws.Init())

	a := audit.New(audit.Options{Workers: 1}, quiet())
	t.Cleanup(func() { _ = a.Close() })
	return NewServer(ws, a, calls, "test")
}

func handler(s *Server, name string) server.ToolHandlerFunc {
	switch name {
	case ToolScanStatements:
		return s.handleScanStatements
	case ToolResolveSpecifier:
		return s.handleResolveSpecifier
	case ToolAuditFile:
		return s.handleAuditFile
	case ToolTransformFile:
		return s.handleTransformFile
	case ToolBuild:
		return s.handleBuild
	}
	return nil
}

func request(name string, args map[string]any) mcp.CallToolRequest {
	var arguments any
	if args != nil {
		arguments = args
	}
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: arguments}}
}

func call(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h := handler(s, name)
	require.NotNil(t, h, name)
	res, err := h(context.Background(), request(name, args))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text
}

func decode(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), v))
}

func TestScanStatements(t *testing.T) {
	s := testServer(t, nil)

	var view scanView
	decode(t, call(t, s, ToolScanStatements, map[string]any{"path": "src/app.js"}), &view)
	require.Len(t, view.Statements, 2)
	assert.Equal(t, "lit", view.Statements[0].Specifier)
	assert.Equal(t, "named", view.Statements[0].Shape)
	assert.Equal(t, "bare", view.Statements[1].Shape)
	assert.Equal(t, 2, view.Statements[1].Line)

	decode(t, call(t, s, ToolScanStatements, map[string]any{
		"source": "import tpl from 'html!./view.html';",
	}), &view)
	require.Len(t, view.Statements, 1)
	assert.Equal(t, "html", view.Statements[0].Marker)
	assert.Equal(t, "./view.html", view.Statements[0].ModulePath)
	assert.Equal(t, "default", view.Statements[0].Shape)

	assert.True(t, call(t, s, ToolScanStatements, nil).IsError)
	assert.True(t, call(t, s, ToolScanStatements, map[string]any{"path": "missing.js"}).IsError)
}

func TestResolveSpecifier(t *testing.T) {
	s := testServer(t, nil)

	var res workspace.Resolution
	decode(t, call(t, s, ToolResolveSpecifier, map[string]any{"specifier": "lit", "from": "src/app.js"}), &res)
	assert.True(t, res.Found)
	assert.Equal(t, "lit", res.Package)
	assert.Equal(t, "../lit/index.js", res.Link)

	decode(t, call(t, s, ToolResolveSpecifier, map[string]any{"specifier": "./util", "from": "src/app.js"}), &res)
	assert.Equal(t, "./util.js", res.Link)

	decode(t, call(t, s, ToolResolveSpecifier, map[string]any{"specifier": "nope"}), &res)
	assert.False(t, res.Found)

	assert.True(t, call(t, s, ToolResolveSpecifier, nil).IsError)
}

func TestAuditFile(t *testing.T) {
	s := testServer(t, nil)

	var report audit.Report
	decode(t, call(t, s, ToolAuditFile, map[string]any{"path": "src/legacy.js"}), &report)
	assert.Equal(t, "src/legacy.js", report.File)
	assert.True(t, report.ModuleExports)
	require.Len(t, report.Requires, 1)
	assert.Equal(t, "fs", report.Requires[0].Specifier)

	assert.True(t, call(t, s, ToolAuditFile, map[string]any{"path": "style.css"}).IsError)
}

func TestTransformAndBuild(t *testing.T) {
	s := testServer(t, nil)

	var stats struct {
		Written  int `json:"written"`
		Failures int `json:"failures"`
	}
	decode(t, call(t, s, ToolTransformFile, map[string]any{"path": "src/app.js"}), &stats)
	assert.Equal(t, 3, stats.Written, "app, util and the pending lit package")

	out, err := os.ReadFile(filepath.Join(s.ws.OutDir(), "src", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "import { html } from '../lit/index.js';\nimport './util.js';\n", string(out))

	decode(t, call(t, s, ToolBuild, nil), &stats)
	assert.Zero(t, stats.Failures)
	assert.FileExists(t, filepath.Join(s.ws.OutDir(), "lit", "index.js"))

	assert.True(t, call(t, s, ToolTransformFile, map[string]any{"path": "package.json"}).IsError)
}

func TestLoggingMiddleware(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	calls, err := mcplog.Open(path)
	require.NoError(t, err)
	s := testServer(t, calls)

	h := s.loggingMiddleware()(s.handleScanStatements)
	_, err = h(context.Background(), request(ToolScanStatements, map[string]any{"source": "import './a';"}))
	require.NoError(t, err)
	_, err = h(context.Background(), request(ToolScanStatements, nil))
	require.NoError(t, err)
	require.NoError(t, calls.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var entries []mcplog.Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e mcplog.Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, ToolScanStatements, entries[0].Tool)
	assert.Equal(t, "import './a';", entries[0].Params["source"])
	assert.False(t, entries[0].IsError)
	assert.Positive(t, entries[0].ResponseBytes)
	assert.True(t, entries[1].IsError)
}
