// Package mcpadmin is the SPEC_FULL.md-supplemented admin inspection
// surface: a read-only MCP tool set mirroring the teacher's
// internal/mcp tool registration idiom (mcp.NewServer + AddTool +
// manual-unmarshal handlers), adapted from "search the code index"
// to "inspect the running pipeline" — list_symbols, inspect_symbol,
// get_checkpoint, pipeline_status.
package mcpadmin

// ListSymbolsParams selects the file whose indexed symbols should be
// listed.
type ListSymbolsParams struct {
	File string `json:"file"`
}

// InspectSymbolParams selects a bare symbol name to resolve against
// the global name index (spec §4.1 name index / external refs).
type InspectSymbolParams struct {
	Name string `json:"name"`
}

// GetCheckpointParams selects a checkpoint by id, with optional
// paging into its member list.
type GetCheckpointParams struct {
	ID       string `json:"id"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// PipelineStatusParams takes no fields; the tool always returns the
// full current snapshot.
type PipelineStatusParams struct{}
