package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool names.
const (
	ToolScanStatements   = "scan_statements"
	ToolResolveSpecifier = "resolve_specifier"
	ToolAuditFile        = "audit_file"
	ToolTransformFile    = "transform_file"
	ToolBuild            = "build"
)

func scanStatementsTool() mcp.Tool {
	return mcp.NewTool(ToolScanStatements,
		mcp.WithDescription("List the import and export statements of a script with their specifiers, binding shapes and lines"),
		mcp.WithString("path", mcp.Description("Script path, relative to the workspace root")),
		mcp.WithString("source", mcp.Description("Inline script source; used instead of path when given")),
	)
}

func resolveSpecifierTool() mcp.Tool {
	return mcp.NewTool(ToolResolveSpecifier,
		mcp.WithDescription("Resolve a module specifier to its source file, output file and rewritten link"),
		mcp.WithString("specifier", mcp.Required(), mcp.Description("Specifier as written in an import, e.g. lit or ./util")),
		mcp.WithString("from", mcp.Description("Importing file relative to the workspace root; defaults to the root")),
	)
}

func auditFileTool() mcp.Tool {
	return mcp.NewTool(ToolAuditFile,
		mcp.WithDescription("Report require calls, CommonJS exports and dynamic imports of a script"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Script path, relative to the workspace root")),
	)
}

func transformFileTool() mcp.Tool {
	return mcp.NewTool(ToolTransformFile,
		mcp.WithDescription("Re-transform one workspace file and what it imports into the output directory"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workspace file, relative to the workspace root")),
	)
}

func buildTool() mcp.Tool {
	return mcp.NewTool(ToolBuild,
		mcp.WithDescription("Build every dependency and workspace source not built yet"),
	)
}
