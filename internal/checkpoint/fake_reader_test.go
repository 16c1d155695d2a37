package checkpoint

import (
	"context"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// fakeReader is an in-memory GraphReader double built from a fixed
// entity/relationship set, for tests that exercise BFS/traversal
// without a real external store.
type fakeReader struct {
	entities  map[string]graph.Entity
	outgoing  map[string][]graph.Relationship
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		entities: make(map[string]graph.Entity),
		outgoing: make(map[string][]graph.Relationship),
	}
}

func (f *fakeReader) addEntity(e graph.Entity) {
	f.entities[e.ID] = e
}

func (f *fakeReader) addEdge(r graph.Relationship) {
	f.outgoing[r.FromEntityID] = append(f.outgoing[r.FromEntityID], r)
}

func (f *fakeReader) GetEntity(_ context.Context, id string) (graph.Entity, bool, error) {
	e, ok := f.entities[id]
	return e, ok, nil
}

func (f *fakeReader) OutgoingRelationships(_ context.Context, entityID string, relTypes []graph.RelationshipType) ([]graph.Relationship, error) {
	rels := f.outgoing[entityID]
	if len(relTypes) == 0 {
		return rels, nil
	}
	allowed := make(map[graph.RelationshipType]bool, len(relTypes))
	for _, t := range relTypes {
		allowed[t] = true
	}
	var out []graph.Relationship
	for _, r := range rels {
		if allowed[r.Type] {
			out = append(out, r)
		}
	}
	return out, nil
}
