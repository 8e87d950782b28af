package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/esmpack/pkg/syntax"
	"github.com/gnana997/esmpack/pkg/util"
)

// statementView is the wire form of a scanned statement.
type statementView struct {
	Kind       string           `json:"kind"`
	Specifier  string           `json:"specifier"`
	ModulePath string           `json:"modulePath"`
	Marker     string           `json:"marker,omitempty"`
	Shape      string           `json:"shape"`
	Default    *syntax.Binding  `json:"default,omitempty"`
	Namespace  *syntax.Binding  `json:"namespace,omitempty"`
	Named      []syntax.Binding `json:"named,omitempty"`
	Line       int              `json:"line"`
	Raw        string           `json:"raw"`
}

type scanView struct {
	File       string          `json:"file,omitempty"`
	Statements []statementView `json:"statements"`
	Errors     []string        `json:"errors,omitempty"`
}

func (s *Server) handleScanStatements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src := req.GetString("source", "")
	path := req.GetString("path", "")
	if src == "" {
		if path == "" {
			return mcp.NewToolResultError("either path or source is required"), nil
		}
		data, err := util.ReadFile(s.path(path))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
		}
		src = string(data)
	}

	stmts, errs := syntax.Scan(src)
	view := scanView{File: path, Statements: make([]statementView, 0, len(stmts))}
	for i := range stmts {
		st := &stmts[i]
		view.Statements = append(view.Statements, statementView{
			Kind:       st.Kind.String(),
			Specifier:  st.Specifier(),
			ModulePath: st.ModulePath,
			Marker:     st.Marker,
			Shape:      st.Shape().String(),
			Default:    st.Default,
			Namespace:  st.Namespace,
			Named:      st.Named,
			Line:       st.Line,
			Raw:        st.Raw,
		})
	}
	for _, e := range errs {
		view.Errors = append(view.Errors, e.Error())
	}
	return jsonResult(view)
}

func (s *Server) handleResolveSpecifier(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spec, err := req.RequireString("specifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from := req.GetString("from", "")
	if from != "" {
		from = s.path(from)
	}
	res, err := s.ws.Resolve(spec, from)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) handleAuditFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.auditor.File(s.path(path))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("audit %s: %v", path, err)), nil
	}
	report.File = path
	return jsonResult(report)
}

func (s *Server) handleTransformFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats, err := s.ws.TransformFile(s.path(path))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("transform %s: %v", path, err)), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.ws.Build()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (s *Server) path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.ws.Root(), filepath.FromSlash(p))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
