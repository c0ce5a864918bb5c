// Package server exposes the query tools over the MCP stdio transport.
package server

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codeix/internal/debug"
	"github.com/standardbeagle/codeix/internal/query"
	"github.com/standardbeagle/codeix/internal/version"
)

// Server registers the tool surface on an MCP stdio server.
type Server struct {
	svc *query.Service
	mcp *mcp.Server
}

// New wires the tools.
func New(svc *query.Service) *Server {
	s := &Server{
		svc: svc,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "codeix",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	debug.Logf("serving MCP over stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	projectProp := &jsonschema.Schema{
		Type:        "string",
		Description: "Restrict to one mount (relative path from the workspace root); all mounts when absent",
	}

	s.mcp.AddTool(&mcp.Tool{
		Name:        "explore",
		Description: "Directory-grouped view of indexed files with per-project metadata",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":        {Type: "string", Description: "Subtree to list"},
				"project":     projectProp,
				"max_entries": {Type: "integer", Description: "Entry cap before +N sentinels (default 200)"},
			},
		},
	}, s.handleExplore)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search",
		Description: "Weighted BM25 search over symbols, files and texts",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Terms; supports OR, |, foo*, -foo and quoted phrases"},
				"scope": {
					Type:        "array",
					Description: "Subset of symbol, file, text (default: all)",
					Items:       &jsonschema.Schema{Type: "string"},
				},
				"kind":          {Description: "Symbol kind or list of kinds"},
				"path":          {Type: "string", Description: "Glob over result file paths"},
				"project":       projectProp,
				"visibility":    {Type: "string", Description: "public, internal or private"},
				"limit":         {Type: "integer", Description: "Max results (default 10)"},
				"offset":        {Type: "integer", Description: "Pagination offset"},
				"snippet_lines": {Type: "integer", Description: "Source context lines: default 10, 0 none, -1 whole symbol"},
				"format":        {Type: "string", Description: "json (default) or text"},
			},
		},
	}, s.handleSearch)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_file_symbols",
		Description: "Symbols of one file (or glob), ordered by line",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"file"},
			Properties: map[string]*jsonschema.Schema{
				"file":    {Type: "string", Description: "Path or glob relative to the project root"},
				"project": projectProp,
			},
		},
	}, s.handleGetFileSymbols)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_children",
		Description: "Direct children of a symbol within a file",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"file", "parent"},
			Properties: map[string]*jsonschema.Schema{
				"file":    {Type: "string"},
				"parent":  {Type: "string", Description: "Dotted name of the parent symbol"},
				"project": projectProp,
			},
		},
	}, s.handleGetChildren)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_callers",
		Description: "Reference sites targeting a symbol name, with the enclosing callers",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"name"},
			Properties: map[string]*jsonschema.Schema{
				"name":    {Type: "string", Description: "Dotted or base symbol name"},
				"kind":    {Type: "string", Description: "Reference kind: call, import, type, include"},
				"project": projectProp,
			},
		},
	}, s.handleGetCallers)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_callees",
		Description: "References made from within a symbol, with resolved definitions",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"caller"},
			Properties: map[string]*jsonschema.Schema{
				"caller":  {Type: "string", Description: "Dotted or base name of the calling symbol"},
				"kind":    {Type: "string", Description: "Reference kind: call, import, type, include"},
				"project": projectProp,
			},
		},
	}, s.handleGetCallees)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "flush_index",
		Description: "Force a synchronous flush; returns once disk is up to date",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleFlushIndex)
}

func (s *Server) handleExplore(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p query.ExploreParams
	if err := unmarshalArgs(req, &p); err != nil {
		return invalidParams("explore", err)
	}
	res, err := s.svc.Explore(p)
	if err != nil {
		return errorResponse("explore", err)
	}
	return jsonResponse(res)
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p query.SearchParams
	if err := unmarshalArgs(req, &p); err != nil {
		return invalidParams("search", err)
	}
	res, err := s.svc.Search(p)
	if err != nil {
		return errorResponse("search", err)
	}
	if p.Format == "text" {
		return textResponse(query.FormatText(res))
	}
	return jsonResponse(res)
}

func (s *Server) handleGetFileSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p query.FileSymbolsParams
	if err := unmarshalArgs(req, &p); err != nil {
		return invalidParams("get_file_symbols", err)
	}
	rows, err := s.svc.GetFileSymbols(p)
	if err != nil {
		return errorResponse("get_file_symbols", err)
	}
	return jsonResponse(map[string]interface{}{"symbols": rows})
}

func (s *Server) handleGetChildren(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p query.ChildrenParams
	if err := unmarshalArgs(req, &p); err != nil {
		return invalidParams("get_children", err)
	}
	rows, err := s.svc.GetChildren(p)
	if err != nil {
		return errorResponse("get_children", err)
	}
	return jsonResponse(map[string]interface{}{"symbols": rows})
}

func (s *Server) handleGetCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p query.CallersParams
	if err := unmarshalArgs(req, &p); err != nil {
		return invalidParams("get_callers", err)
	}
	rows, err := s.svc.GetCallers(p)
	if err != nil {
		return errorResponse("get_callers", err)
	}
	return jsonResponse(map[string]interface{}{"references": rows})
}

func (s *Server) handleGetCallees(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p query.CalleesParams
	if err := unmarshalArgs(req, &p); err != nil {
		return invalidParams("get_callees", err)
	}
	rows, err := s.svc.GetCallees(p)
	if err != nil {
		return errorResponse("get_callees", err)
	}
	return jsonResponse(map[string]interface{}{"references": rows})
}

func (s *Server) handleFlushIndex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.FlushIndex(); err != nil {
		return errorResponse("flush_index", err)
	}
	return jsonResponse(map[string]interface{}{"flushed": true})
}

// unmarshalArgs decodes tool arguments, tolerating absent bodies.
func unmarshalArgs(req *mcp.CallToolRequest, into interface{}) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, into)
}
