package checkpoint

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// Diff is the delta between two checkpoints' membership and captured
// relationships (a supplemented operation beyond create/list/
// members/summary/export/import/delete: given RoaringBitmap set
// operations are already wired for membership, union/intersect/
// difference across checkpoints is a natural, cheap extension, and is
// directly useful for auditing what a time-travel traversal changed).
type Diff struct {
	AddedEntityIDs   []string
	RemovedEntityIDs []string

	AddedRelationships   []graph.Relationship
	RemovedRelationships []graph.Relationship
}

// Diff computes what changed going from checkpoint `a` to checkpoint
// `b`: entities/relationships present in b but not a (added), and
// present in a but not b (removed).
func (m *Manager) Diff(a, b string) (Diff, error) {
	cpA, err := m.lookup(a)
	if err != nil {
		return Diff{}, err
	}
	cpB, err := m.lookup(b)
	if err != nil {
		return Diff{}, err
	}

	added := roaring.AndNot(cpB.members, cpA.members)
	removed := roaring.AndNot(cpA.members, cpB.members)

	result := Diff{
		AddedEntityIDs:   m.resolveOrdinals(added),
		RemovedEntityIDs: m.resolveOrdinals(removed),
	}

	bRels := make(map[string]graph.Relationship, len(cpB.relationships))
	for _, rel := range cpB.relationships {
		bRels[rel.ID] = rel
	}
	aRels := make(map[string]graph.Relationship, len(cpA.relationships))
	for _, rel := range cpA.relationships {
		aRels[rel.ID] = rel
	}

	for id, rel := range bRels {
		if _, ok := aRels[id]; !ok {
			result.AddedRelationships = append(result.AddedRelationships, rel)
		}
	}
	for id, rel := range aRels {
		if _, ok := bRels[id]; !ok {
			result.RemovedRelationships = append(result.RemovedRelationships, rel)
		}
	}

	return result, nil
}

func (m *Manager) resolveOrdinals(bm *roaring.Bitmap) []string {
	ords := bm.ToArray()
	out := make([]string, 0, len(ords))
	for _, ord := range ords {
		if id, ok := m.ordinals.id(ord); ok {
			out = append(out, id)
		}
	}
	return out
}
