package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

func TestManager_TraverseRespectsMaxDepth(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := buildLinearFixture(base)
	m := NewManager(reader)

	result, err := m.Traverse(context.Background(), "a", TraversalOptions{MaxDepth: 1})
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	ids := toSet(result.EntityIDs)
	if !ids["a"] || !ids["b"] || !ids["d"] {
		t.Errorf("expected a, b, d within depth 1, got %v", result.EntityIDs)
	}
	if ids["c"] {
		t.Error("expected c to be excluded beyond depth 1")
	}
}

func TestManager_TraverseFiltersByRelationshipType(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := buildLinearFixture(base)
	m := NewManager(reader)

	result, err := m.Traverse(context.Background(), "a", TraversalOptions{MaxDepth: 2, RelTypes: []graph.RelationshipType{graph.RelContains}})
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	ids := toSet(result.EntityIDs)
	if !ids["b"] || !ids["c"] {
		t.Errorf("expected CONTAINS-reachable b and c, got %v", result.EntityIDs)
	}
	if ids["d"] {
		t.Error("expected DEPENDS_ON target d to be excluded by the relationship-type filter")
	}
}

func TestManager_TraverseSinceUntilWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := buildLinearFixture(base)
	m := NewManager(reader)

	// Window excludes r-bc (base+1m) and r-ad (base+2m), keeping only r-ab.
	opts := TraversalOptions{
		MaxDepth: 2,
		Since:    base.Add(-time.Second),
		Until:    base.Add(30 * time.Second),
	}
	result, err := m.Traverse(context.Background(), "a", opts)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	ids := toSet(result.EntityIDs)
	if !ids["a"] || !ids["b"] {
		t.Errorf("expected a and b within the window, got %v", result.EntityIDs)
	}
	if ids["c"] || ids["d"] {
		t.Errorf("expected c and d outside the window to be excluded, got %v", result.EntityIDs)
	}
}

func TestManager_TraverseAtTimeIsAPointInTimeSnapshot(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := buildLinearFixture(base)
	m := NewManager(reader)

	opts := TraversalOptions{MaxDepth: 2, AtTime: base.Add(90 * time.Second)}
	result, err := m.Traverse(context.Background(), "a", opts)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	ids := toSet(result.EntityIDs)
	if !ids["a"] || !ids["b"] || !ids["c"] {
		t.Errorf("expected a, b, c visible at t=90s, got %v", result.EntityIDs)
	}
	if ids["d"] {
		t.Error("expected d (modified at t=120s) to be excluded by AtTime=90s")
	}
}

func TestManager_TraverseDefaultsMaxDepth(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)

	result, err := m.Traverse(context.Background(), "a", TraversalOptions{})
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if len(result.EntityIDs) == 0 {
		t.Error("expected a default max depth to still traverse something")
	}
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
