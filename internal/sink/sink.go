// Package sink defines the pipeline's downstream collaborator
// boundaries (spec §6): the knowledge-graph sink's three bulk
// endpoints and the embedding service's generate-and-store call. These
// are small interface-only contracts in the teacher's
// internal/interfaces style, consumed by C6 and C5's enrichment
// handler respectively and implemented concretely outside this
// module.
package sink

import "context"

// BulkResult is the uniform {success, count} shape every bulk sink
// endpoint returns (spec §6).
type BulkResult struct {
	Success bool
	Count   int
}

// GraphSink is the downstream knowledge-graph store. All three
// endpoints must be idempotent by id (spec §6) — implementations are
// expected to upsert, not insert-or-fail, on a repeated id.
type GraphSink interface {
	// CreateEntitiesBulk upserts a batch of entities, encoded as the
	// sink's own wire representation (left to the implementation —
	// this package only names the shape of the call).
	CreateEntitiesBulk(ctx context.Context, entities []interface{}) (BulkResult, error)
	// CreateRelationshipsBulk upserts a batch of relationships.
	CreateRelationshipsBulk(ctx context.Context, relationships []interface{}) (BulkResult, error)
	// CreateEmbeddingsBatch upserts a batch of embedding vectors for
	// the given entities, with sink-specific options (e.g. index
	// name).
	CreateEmbeddingsBatch(ctx context.Context, entities []interface{}, options map[string]interface{}) (BulkResult, error)
}

// EmbeddingResult is what the embedding service returns for one
// entity (spec §6).
type EmbeddingResult struct {
	EntityID string
	Vector   []float32
	Metadata map[string]interface{}
}

// EmbeddingOptions configures one generate-and-store call.
type EmbeddingOptions struct {
	IndexName    string
	CheckpointID string
}

// EmbeddingService generates and stores an embedding for one entity.
// Its absence skips enrichment rather than failing the pipeline (spec
// §6) — callers should treat a nil EmbeddingService as "enrichment
// disabled", not an error.
type EmbeddingService interface {
	GenerateAndStore(ctx context.Context, entity interface{}, opts EmbeddingOptions) (EmbeddingResult, error)
}
