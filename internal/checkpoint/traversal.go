package checkpoint

import (
	"context"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// TraversalOptions bounds a time-travel traversal (spec §4.11: "yields
// the entities/relationships reachable from a start node within
// [since, until] or atTime, capped by maxDepth and optional
// relationship-type filter").
type TraversalOptions struct {
	MaxDepth  int
	Since     time.Time
	Until     time.Time
	AtTime    time.Time
	RelTypes  []graph.RelationshipType
}

// TraversalResult is the set of entities and relationships reached.
type TraversalResult struct {
	EntityIDs     []string
	Relationships []graph.Relationship
}

// inWindow reports whether a relationship's LastModifiedAt falls
// within the traversal's time bound: either the [since, until]
// interval (zero values are open-ended) or, if AtTime is set, at or
// before that instant (a point-in-time snapshot).
func inWindow(r graph.Relationship, opts TraversalOptions) bool {
	if !opts.AtTime.IsZero() {
		return !r.LastModifiedAt.After(opts.AtTime)
	}
	if !opts.Since.IsZero() && r.LastModifiedAt.Before(opts.Since) {
		return false
	}
	if !opts.Until.IsZero() && r.LastModifiedAt.After(opts.Until) {
		return false
	}
	return true
}

// bfs expands seeds breadth-first over reader's outgoing edges, up to
// maxDepth hops, filtered by opts' time window and relationship types.
// It is shared by checkpoint creation (spec §4.11 create, default
// maxDepth 2) and the standalone time-travel traversal operation.
func bfs(ctx context.Context, reader GraphReader, seeds []string, maxDepth int, opts TraversalOptions) (TraversalResult, error) {
	visited := make(map[string]bool, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	var relationships []graph.Relationship
	seenRel := make(map[string]bool)

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			rels, err := reader.OutgoingRelationships(ctx, id, opts.RelTypes)
			if err != nil {
				return TraversalResult{}, err
			}
			for _, rel := range rels {
				if !inWindow(rel, opts) {
					continue
				}
				if !seenRel[rel.ID] {
					seenRel[rel.ID] = true
					relationships = append(relationships, rel)
				}
				target := rel.ToEntityID
				if target == "" || visited[target] {
					continue
				}
				visited[target] = true
				next = append(next, target)
			}
		}
		frontier = next
	}

	ids := make([]string, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	return TraversalResult{EntityIDs: ids, Relationships: relationships}, nil
}
