package parse

import (
	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// EntityDelta is the added/updated/removed split produced by diffing
// two parses' entity sets (spec §4.2 Entity diff).
type EntityDelta struct {
	Added   []graph.Entity
	Updated []graph.Entity
	Removed []graph.Entity
}

// RelationshipDelta is the added/removed split produced by diffing two
// parses' relationship sets by canonical key (spec §4.2 Relationship
// diff).
type RelationshipDelta struct {
	Added   []graph.Relationship
	Removed []graph.Relationship
}

// slotKeyFor returns the bucket key entities are diffed under: for symbols
// `{fileRel}:{name}`, matching the global symbol index's own key
// scheme (internal/cache.slotKey) so a CachedFileInfo.SymbolMap built
// here is directly usable for fileSymbol ref resolution. The file
// entity itself gets a reserved slot so content-only file metadata
// changes (size, line count) are tracked the same way as symbols.
func slotKeyFor(fileRel string, ent graph.Entity) string {
	switch ent.Variant {
	case graph.EntitySymbol:
		return fileRel + ":" + ent.Symbol.Name
	case graph.EntityFile:
		return fileRel + ":__file__"
	case graph.EntityDirectory:
		return ent.Path + ":__dir__"
	default:
		return ent.ID
	}
}

// buildSymbolMap turns a flat entity slice into the slot-keyed map
// that both diffing and CachedFileInfo.SymbolMap use.
func buildSymbolMap(fileRel string, entities []graph.Entity) map[string]graph.Entity {
	m := make(map[string]graph.Entity, len(entities))
	for _, e := range entities {
		m[slotKeyFor(fileRel, e)] = e
	}
	return m
}

// diffEntities computes the added/updated/removed split between two
// slot-keyed entity maps for the same file (spec §4.2).
func diffEntities(oldMap, newMap map[string]graph.Entity) EntityDelta {
	var d EntityDelta
	for key, newEnt := range newMap {
		oldEnt, existed := oldMap[key]
		if !existed {
			d.Added = append(d.Added, newEnt)
			continue
		}
		if oldEnt.Hash != newEnt.Hash {
			d.Updated = append(d.Updated, newEnt)
		}
	}
	for key, oldEnt := range oldMap {
		if _, stillPresent := newMap[key]; !stillPresent {
			d.Removed = append(d.Removed, oldEnt)
		}
	}
	return d
}

// diffRelationships computes the added/removed split by canonical key
// (spec §4.2 Relationship diff).
func diffRelationships(old, new []graph.Relationship) RelationshipDelta {
	oldByKey := make(map[string]graph.Relationship, len(old))
	for _, r := range old {
		r := r
		oldByKey[graph.CanonicalKey(&r)] = r
	}
	newByKey := make(map[string]graph.Relationship, len(new))
	for _, r := range new {
		r := r
		newByKey[graph.CanonicalKey(&r)] = r
	}

	var d RelationshipDelta
	for key, r := range newByKey {
		if _, existed := oldByKey[key]; !existed {
			d.Added = append(d.Added, r)
		}
	}
	for key, r := range oldByKey {
		if _, stillPresent := newByKey[key]; !stillPresent {
			d.Removed = append(d.Removed, r)
		}
	}
	return d
}
