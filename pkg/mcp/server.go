// Package mcp exposes trace files to MCP clients: validation, schema
// export, plan rendering at a step, step environments and predicate
// search.
package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ormasoftchile/qtrace/pkg/source"
)

// NewServer creates a new MCP server with qtrace tools registered. When
// src is non-nil the qtrace/record tool is registered as well.
func NewServer(version string, src source.Source, timeout time.Duration) *server.MCPServer {
	s := server.NewMCPServer(
		"qtrace",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(
		mcp.NewTool("qtrace/validate",
			mcp.WithDescription("Validate a recorded trace file (YAML or JSON)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the trace file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("qtrace/schema",
			mcp.WithDescription("Export the trace file JSON Schema"),
		),
		HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("qtrace/tree",
			mcp.WithDescription("Render the execution plan of a trace, highlighting the operator active at a step"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the trace file")),
			mcp.WithNumber("step", mcp.Description("1-based step to highlight (default 1)")),
			mcp.WithString("format", mcp.Description("Diagram format: ascii, mermaid or markdown")),
		),
		HandleTree,
	)

	s.AddTool(
		mcp.NewTool("qtrace/env",
			mcp.WithDescription("Show the variables bound at a step of a trace"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the trace file")),
			mcp.WithNumber("step", mcp.Required(), mcp.Description("1-based step number")),
		),
		HandleEnv,
	)

	s.AddTool(
		mcp.NewTool("qtrace/search",
			mcp.WithDescription("Find the steps of a trace whose variables satisfy an expression"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the trace file")),
			mcp.WithString("expr", mcp.Required(), mcp.Description("Boolean expression over step variables, e.g. x == 3 && y > 5")),
			mcp.WithNumber("from", mcp.Description("1-based step to search from; omit to list every match")),
			mcp.WithBoolean("reverse", mcp.Description("Search backwards from 'from'")),
		),
		HandleSearch,
	)

	if src != nil {
		r := &Recorder{Source: src, Timeout: timeout}
		s.AddTool(
			mcp.NewTool("qtrace/record",
				mcp.WithDescription("Run a query with execution recording and summarize (or save) its trace"),
				mcp.WithString("query", mcp.Required(), mcp.Description("Query text")),
				mcp.WithString("output", mcp.Description("Trace file to write (optional)")),
			),
			r.HandleRecord,
		)
	}

	return s
}
