package mcpadmin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Amicidal/codegraph-ingest/internal/checkpoint"
)

func marshalParams(params map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("mcpadmin: marshal params: %w", err)
	}
	return b, nil
}

func errUnknownTool(name string) error {
	return fmt.Errorf("unknown tool %q", name)
}

// symbolView is the JSON-facing projection of a graph.Entity for the
// admin surface — narrower than the full entity, mirroring the
// teacher's response.go practice of shaping dedicated response types
// rather than echoing internal structs verbatim.
type symbolView struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Signature string `json:"signature,omitempty"`
	Exported  bool   `json:"isExported"`
}

// handleListSymbols lists every symbol currently indexed for a file.
func (s *Server) handleListSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Manual deserialization to avoid "unknown field" errors, grounded
	// on the teacher's handleInfo/handleNewSearch.
	var params ListSymbolsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("list_symbols", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.File == "" {
		return errorResponse("list_symbols", fmt.Errorf("file is required"))
	}

	entities := s.symbols.SymbolsForFile(params.File)
	views := make([]symbolView, 0, len(entities))
	for _, ent := range entities {
		if ent.Symbol == nil {
			continue
		}
		views = append(views, symbolView{
			ID:        ent.ID,
			File:      ent.Path,
			Name:      ent.Symbol.Name,
			Kind:      ent.Symbol.Kind.String(),
			Signature: ent.Symbol.Signature,
			Exported:  ent.Symbol.IsExported,
		})
	}
	return jsonResponse(map[string]interface{}{
		"file":    params.File,
		"symbols": views,
		"count":   len(views),
	})
}

// handleInspectSymbol resolves a bare name against the global name
// index, returning every candidate sharing that name.
func (s *Server) handleInspectSymbol(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params InspectSymbolParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("inspect_symbol", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Name == "" {
		return errorResponse("inspect_symbol", fmt.Errorf("name is required"))
	}

	candidates := s.symbols.NameCandidates(params.Name)
	views := make([]symbolView, 0, len(candidates))
	for _, ent := range candidates {
		if ent.Symbol == nil {
			continue
		}
		views = append(views, symbolView{
			ID:        ent.ID,
			File:      ent.Path,
			Name:      ent.Symbol.Name,
			Kind:      ent.Symbol.Kind.String(),
			Signature: ent.Symbol.Signature,
			Exported:  ent.Symbol.IsExported,
		})
	}

	result := map[string]interface{}{
		"name":       params.Name,
		"candidates": views,
		"count":      len(views),
	}
	if len(views) == 0 {
		result["suggestedCandidates"] = s.symbols.SuggestedCandidates(params.Name, 5)
	}
	return jsonResponse(result)
}

// handleGetCheckpoint fetches a checkpoint's metadata, summary, and a
// page of member ids.
func (s *Server) handleGetCheckpoint(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params GetCheckpointParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("get_checkpoint", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.ID == "" {
		return errorResponse("get_checkpoint", fmt.Errorf("id is required"))
	}

	meta, ok := s.checkpoints.Get(params.ID)
	if !ok {
		return errorResponse("get_checkpoint", checkpoint.ErrNotFound)
	}
	summary, err := s.checkpoints.Summary(ctx, params.ID)
	if err != nil {
		return errorResponse("get_checkpoint", err)
	}
	members, err := s.checkpoints.Members(params.ID, params.Page, params.PageSize)
	if err != nil {
		return errorResponse("get_checkpoint", err)
	}

	return jsonResponse(map[string]interface{}{
		"checkpoint": meta,
		"summary":    summary,
		"members":    members,
		"page":       params.Page,
	})
}

// handlePipelineStatus reports the running pipeline's current state.
func (s *Server) handlePipelineStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.pipeline == nil {
		return errorResponse("pipeline_status", fmt.Errorf("no pipeline wired to this admin server"))
	}
	return jsonResponse(map[string]interface{}{
		"state":     s.pipeline.State().String(),
		"queue":     s.pipeline.QueueStats(),
		"workers":   s.pipeline.WorkerSnapshot(),
		"telemetry": s.pipeline.TelemetrySnapshot(),
		"deadLetters": s.pipeline.DeadLetters(),
	})
}
