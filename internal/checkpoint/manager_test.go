package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// buildLinearFixture wires A -(CONTAINS)-> B -(CONTAINS)-> C, each
// relationship timestamped one minute apart starting at base, plus a
// DEPENDS_ON edge A -> D so relationship-type filtering has something
// to exclude.
func buildLinearFixture(base time.Time) *fakeReader {
	r := newFakeReader()
	r.addEntity(graph.Entity{ID: "a", Variant: graph.EntityFile})
	r.addEntity(graph.Entity{ID: "b", Variant: graph.EntitySymbol})
	r.addEntity(graph.Entity{ID: "c", Variant: graph.EntitySymbol})
	r.addEntity(graph.Entity{ID: "d", Variant: graph.EntityModule})

	r.addEdge(graph.Relationship{ID: "r-ab", Type: graph.RelContains, FromEntityID: "a", ToEntityID: "b", LastModifiedAt: base})
	r.addEdge(graph.Relationship{ID: "r-bc", Type: graph.RelContains, FromEntityID: "b", ToEntityID: "c", LastModifiedAt: base.Add(time.Minute)})
	r.addEdge(graph.Relationship{ID: "r-ad", Type: graph.RelDependsOn, FromEntityID: "a", ToEntityID: "d", LastModifiedAt: base.Add(2 * time.Minute)})
	return r
}

func TestManager_CreateCapturesBoundedSubgraph(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := buildLinearFixture(base)
	m := NewManager(reader)

	cp, err := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 2, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cp.HopLimit != 2 {
		t.Errorf("HopLimit = %d, want 2", cp.HopLimit)
	}

	members, err := m.Members(cp.ID, 0, 100)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	want := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	if len(members) != len(want) {
		t.Fatalf("Members = %v, want %d entries", members, len(want))
	}
	for _, id := range members {
		if !want[id] {
			t.Errorf("unexpected member %q", id)
		}
	}
}

func TestManager_CreateDefaultsHopLimit(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := buildLinearFixture(base)
	m := NewManager(reader)

	cp, err := m.Create(context.Background(), graph.ReasonDaily, []string{"a"}, 0, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cp.HopLimit != defaultHopLimit {
		t.Errorf("HopLimit = %d, want default %d", cp.HopLimit, defaultHopLimit)
	}
}

func TestManager_ListAndGet(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)

	cp1, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 1, time.Time{}, time.Time{})
	cp2, _ := m.Create(context.Background(), graph.ReasonIncident, []string{"b"}, 1, time.Time{}, time.Time{})

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List length = %d, want 2", len(list))
	}

	got1, ok := m.Get(cp1.ID)
	if !ok || got1.ID != cp1.ID {
		t.Error("Get did not return the created checkpoint")
	}
	got2, ok := m.Get(cp2.ID)
	if !ok || got2.ID != cp2.ID {
		t.Error("Get did not return the second checkpoint")
	}
}

func TestManager_GetUnknownReturnsFalse(t *testing.T) {
	m := NewManager(newFakeReader())
	if _, ok := m.Get("missing"); ok {
		t.Error("expected Get to report false for an unknown id")
	}
}

func TestManager_MembersPages(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)
	cp, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 2, time.Time{}, time.Time{})

	page0, err := m.Members(cp.ID, 0, 2)
	if err != nil {
		t.Fatalf("Members page 0: %v", err)
	}
	if len(page0) != 2 {
		t.Fatalf("page0 length = %d, want 2", len(page0))
	}

	page1, err := m.Members(cp.ID, 1, 2)
	if err != nil {
		t.Fatalf("Members page 1: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("page1 length = %d, want 2", len(page1))
	}

	pageOOB, err := m.Members(cp.ID, 5, 2)
	if err != nil {
		t.Fatalf("Members out-of-bounds page: %v", err)
	}
	if len(pageOOB) != 0 {
		t.Errorf("expected an empty page past the end, got %v", pageOOB)
	}
}

func TestManager_Summary(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)
	cp, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 2, time.Time{}, time.Time{})

	summary, err := m.Summary(context.Background(), cp.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalEntities != 4 {
		t.Errorf("TotalEntities = %d, want 4", summary.TotalEntities)
	}
	if summary.EntityCountByKind["file"] != 1 || summary.EntityCountByKind["symbol"] != 2 || summary.EntityCountByKind["module"] != 1 {
		t.Errorf("unexpected EntityCountByKind: %+v", summary.EntityCountByKind)
	}
	if summary.RelationshipCountByType["CONTAINS"] != 2 || summary.RelationshipCountByType["DEPENDS_ON"] != 1 {
		t.Errorf("unexpected RelationshipCountByType: %+v", summary.RelationshipCountByType)
	}
}

func TestManager_ExportImportRoundTrip(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)
	cp, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 2, time.Time{}, time.Time{})

	export, err := m.Export(cp.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(export.Members) != 4 {
		t.Fatalf("exported Members length = %d, want 4", len(export.Members))
	}

	m2 := NewManager(reader)
	imported, err := m2.Import(export, true)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.ID != cp.ID {
		t.Errorf("preserveIDs=true should keep the original id; got %q, want %q", imported.ID, cp.ID)
	}

	members, err := m2.Members(imported.ID, 0, 100)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 4 {
		t.Errorf("imported Members length = %d, want 4", len(members))
	}
}

func TestManager_ImportWithoutPreserveIDsIssuesNewID(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)
	cp, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 1, time.Time{}, time.Time{})
	export, _ := m.Export(cp.ID)

	imported, err := m.Import(export, false)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.ID == cp.ID {
		t.Error("expected a fresh id when preserveIDs is false")
	}
}

func TestManager_DeleteIsIdempotent(t *testing.T) {
	reader := buildLinearFixture(time.Now())
	m := NewManager(reader)
	cp, _ := m.Create(context.Background(), graph.ReasonManual, []string{"a"}, 1, time.Time{}, time.Time{})

	m.Delete(cp.ID)
	if _, ok := m.Get(cp.ID); ok {
		t.Error("expected the checkpoint to be gone after Delete")
	}
	m.Delete(cp.ID) // second delete must not panic or error
}

func TestManager_SummaryUnknownCheckpointReturnsErrNotFound(t *testing.T) {
	m := NewManager(newFakeReader())
	if _, err := m.Summary(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
