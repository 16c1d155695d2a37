package fanout

import (
	"testing"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

func TestNormalizeFilter_EqualsClause(t *testing.T) {
	f := normalizeFilter(map[string]interface{}{"module": "auth"})
	event := graph.DomainEvent{Payload: map[string]interface{}{"module": "auth"}}
	if !matches(f, event) {
		t.Error("expected equals clause to match")
	}
	event.Payload["module"] = "billing"
	if matches(f, event) {
		t.Error("expected equals clause to reject a different module")
	}
}

func TestNormalizeFilter_InClause(t *testing.T) {
	f := normalizeFilter(map[string]interface{}{"kind": []interface{}{"function", "class"}})
	match := graph.DomainEvent{Payload: map[string]interface{}{"kind": "class"}}
	miss := graph.DomainEvent{Payload: map[string]interface{}{"kind": "file"}}
	if !matches(f, match) {
		t.Error("expected set-membership to match")
	}
	if matches(f, miss) {
		t.Error("expected set-membership to reject non-member")
	}
}

func TestNormalizeFilter_PrefixClause(t *testing.T) {
	f := normalizeFilter(map[string]interface{}{"pathPrefix": "src/"})
	match := graph.DomainEvent{Payload: map[string]interface{}{"path": "src/main.go"}}
	miss := graph.DomainEvent{Payload: map[string]interface{}{"path": "vendor/lib.go"}}
	if !matches(f, match) {
		t.Error("expected prefix clause to match")
	}
	if matches(f, miss) {
		t.Error("expected prefix clause to reject non-prefixed path")
	}
}

func TestNormalizeFilter_TimeRangeClause(t *testing.T) {
	now := time.Now()
	f := normalizeFilter(map[string]interface{}{
		"timestamp": map[string]interface{}{
			"since": now.Add(-time.Hour).Format(time.RFC3339),
			"until": now.Add(time.Hour).Format(time.RFC3339),
		},
	})
	inRange := graph.DomainEvent{Timestamp: now, Payload: map[string]interface{}{}}
	outOfRange := graph.DomainEvent{Timestamp: now.Add(-2 * time.Hour), Payload: map[string]interface{}{}}
	if !matches(f, inRange) {
		t.Error("expected in-range timestamp to match")
	}
	if matches(f, outOfRange) {
		t.Error("expected out-of-range timestamp to be rejected")
	}
}

func TestNormalizeFilter_MultipleClausesAreIntersected(t *testing.T) {
	f := normalizeFilter(map[string]interface{}{"module": "auth", "kind": []interface{}{"function"}})
	bothMatch := graph.DomainEvent{Payload: map[string]interface{}{"module": "auth", "kind": "function"}}
	onlyOneMatches := graph.DomainEvent{Payload: map[string]interface{}{"module": "auth", "kind": "class"}}
	if !matches(f, bothMatch) {
		t.Error("expected both clauses to match")
	}
	if matches(f, onlyOneMatches) {
		t.Error("expected a single unmatched clause to fail the whole filter")
	}
}

func TestMatches_EmptyFilterMatchesEverything(t *testing.T) {
	f := graph.NormalizedFilter{}
	event := graph.DomainEvent{Payload: map[string]interface{}{"anything": "goes"}}
	if !matches(f, event) {
		t.Error("expected an empty filter to match any event")
	}
}
