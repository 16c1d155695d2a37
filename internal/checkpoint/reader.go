package checkpoint

import (
	"context"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// GraphReader is the read-side counterpart to sink.GraphSink (spec §6
// names only the write-side bulk endpoints, but C11's BFS and
// time-travel traversal need to query the canonical store). Left as
// an interface-only contract, in the teacher's internal/interfaces
// style, implemented concretely outside this module.
type GraphReader interface {
	// GetEntity fetches one entity by id. ok is false if it doesn't
	// exist (e.g. deleted since the checkpoint was seeded).
	GetEntity(ctx context.Context, id string) (entity graph.Entity, ok bool, err error)

	// OutgoingRelationships returns the relationships leaving
	// entityID, used to expand one hop of a BFS/traversal. An empty
	// relTypes filters nothing; a non-empty one restricts to those
	// types.
	OutgoingRelationships(ctx context.Context, entityID string, relTypes []graph.RelationshipType) ([]graph.Relationship, error)
}
