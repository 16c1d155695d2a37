package mcpadmin

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Amicidal/codegraph-ingest/internal/cache"
	"github.com/Amicidal/codegraph-ingest/internal/checkpoint"
)

// Server is the admin inspection MCP server: a read-only tool set
// wrapping C1's symbol index, C11's checkpoint manager, and C9's
// pipeline status accessors. Grounded on the teacher's
// internal/mcp/server.go Server{server *mcp.Server, ...} shape and
// its registerTools/AddTool registration loop.
type Server struct {
	mcpServer *mcp.Server

	symbols     *cache.SymbolIndex
	checkpoints *checkpoint.Manager
	pipeline    PipelineStatus
}

// NewServer builds the admin MCP server and registers its tool set.
// pipelineStatus may be nil if no pipeline is wired yet (e.g. in
// tests exercising only the symbol/checkpoint tools); pipeline_status
// then reports an error rather than panicking.
func NewServer(symbols *cache.SymbolIndex, checkpoints *checkpoint.Manager, pipelineStatus PipelineStatus) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer(&mcp.Implementation{Name: "codegraph-ingest-admin", Version: "1.0.0"}, nil),
		symbols:     symbols,
		checkpoints: checkpoints,
		pipeline:    pipelineStatus,
	}
	s.registerTools()
	return s
}

// registerTools registers the admin tool set, grounded on the
// teacher's internal/mcp/server.go registerTools.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "list_symbols",
		Description: "List every symbol entity currently indexed for a source file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {Type: "string", Description: "File path relative to the repository root"},
			},
			Required: []string{"file"},
		},
	}, s.handleListSymbols)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "inspect_symbol",
		Description: "Resolve a bare symbol name against the global name index, returning every candidate entity sharing that name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {Type: "string", Description: "Symbol name to resolve"},
			},
			Required: []string{"name"},
		},
	}, s.handleInspectSymbol)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "get_checkpoint",
		Description: "Fetch a checkpoint's metadata, summary, and a page of its member entity ids.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"id":        {Type: "string", Description: "Checkpoint id"},
				"page":      {Type: "integer", Description: "Zero-indexed page of members to return"},
				"page_size": {Type: "integer", Description: "Members per page (default 100)"},
			},
			Required: []string{"id"},
		},
	}, s.handleGetCheckpoint)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "pipeline_status",
		Description: "Report the running pipeline's lifecycle state, queue stats, worker snapshot, telemetry snapshot, and dead letters.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
		},
	}, s.handlePipelineStatus)
}

// Run starts the server on stdio, grounded on the teacher's
// s.server.Run(ctx, &mcp.StdioTransport{}).
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// CallTool is an in-process test helper that bypasses the stdio
// transport, grounded on the teacher's internal/mcp/test_helpers.go
// CallTool.
func (s *Server) CallTool(ctx context.Context, toolName string, params map[string]interface{}) (*mcp.CallToolResult, error) {
	paramsJSON, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: toolName, Arguments: paramsJSON}}

	switch toolName {
	case "list_symbols":
		return s.handleListSymbols(ctx, req)
	case "inspect_symbol":
		return s.handleInspectSymbol(ctx, req)
	case "get_checkpoint":
		return s.handleGetCheckpoint(ctx, req)
	case "pipeline_status":
		return s.handlePipelineStatus(ctx, req)
	default:
		return errorResponse(toolName, errUnknownTool(toolName))
	}
}
