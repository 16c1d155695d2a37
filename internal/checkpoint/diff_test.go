package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

func TestManager_DiffReportsAddedAndRemoved(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := buildLinearFixture(base)
	m := NewManager(reader)

	// cpA: shallow snapshot, one hop from a: a, b and d.
	cpA, err := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 1, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Create cpA: %v", err)
	}

	// cpB: deeper snapshot reaching a, b, c, d.
	cpB, err := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 2, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Create cpB: %v", err)
	}

	diff, err := m.Diff(cpA.ID, cpB.ID)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	added := toSet(diff.AddedEntityIDs)
	if !added["c"] {
		t.Errorf("expected c to be added going from cpA to cpB, got %v", diff.AddedEntityIDs)
	}
	if len(diff.RemovedEntityIDs) != 0 {
		t.Errorf("expected no removed entities, got %v", diff.RemovedEntityIDs)
	}

	addedRelIDs := make(map[string]bool, len(diff.AddedRelationships))
	for _, rel := range diff.AddedRelationships {
		addedRelIDs[rel.ID] = true
	}
	if !addedRelIDs["r-bc"] {
		t.Errorf("expected r-bc among added relationships, got %+v", diff.AddedRelationships)
	}
}

func TestManager_DiffIsAntisymmetric(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)

	cpA, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 1, time.Time{}, time.Time{})
	cpB, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 2, time.Time{}, time.Time{})

	forward, err := m.Diff(cpA.ID, cpB.ID)
	if err != nil {
		t.Fatalf("Diff forward: %v", err)
	}
	backward, err := m.Diff(cpB.ID, cpA.ID)
	if err != nil {
		t.Fatalf("Diff backward: %v", err)
	}

	if len(forward.AddedEntityIDs) != len(backward.RemovedEntityIDs) {
		t.Errorf("forward.Added (%v) should mirror backward.Removed (%v)", forward.AddedEntityIDs, backward.RemovedEntityIDs)
	}
}

func TestManager_DiffUnknownCheckpointReturnsErrNotFound(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)
	cp, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 1, time.Time{}, time.Time{})

	if _, err := m.Diff(cp.ID, "missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := m.Diff("missing", cp.ID); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
