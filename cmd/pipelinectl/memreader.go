package main

import (
	"context"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/sink"
)

// memGraphReader is a checkpoint.GraphReader backed directly by a
// sink.FakeGraphSink's recorded batches — the single-process,
// batteries-included read path pipelinectl wires up when no external
// graph store is configured. A real deployment would back
// checkpoint.GraphReader with the same store internal/sink's
// concrete GraphSink implementation writes to; this module only ever
// defines that store's write contract (spec §6), so the in-memory
// fake is this CLI's only self-contained option.
type memGraphReader struct {
	sink *sink.FakeGraphSink
}

func newMemGraphReader(s *sink.FakeGraphSink) *memGraphReader {
	return &memGraphReader{sink: s}
}

func (r *memGraphReader) GetEntity(ctx context.Context, id string) (graph.Entity, bool, error) {
	for _, raw := range r.sink.Entities {
		ent, ok := raw.(graph.Entity)
		if ok && ent.ID == id {
			return ent, true, nil
		}
	}
	return graph.Entity{}, false, nil
}

func (r *memGraphReader) OutgoingRelationships(ctx context.Context, entityID string, relTypes []graph.RelationshipType) ([]graph.Relationship, error) {
	wanted := make(map[graph.RelationshipType]bool, len(relTypes))
	for _, t := range relTypes {
		wanted[t] = true
	}

	var out []graph.Relationship
	for _, raw := range r.sink.Relationships {
		rel, ok := raw.(graph.Relationship)
		if !ok || rel.FromEntityID != entityID {
			continue
		}
		if len(wanted) > 0 && !wanted[rel.Type] {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}
