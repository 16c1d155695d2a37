package fanout

import (
	"strings"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// normalizeFilter turns a client-supplied raw filter map into a
// graph.NormalizedFilter: one clause per key, always an intersection
// (spec §4.10: "an intersection of predicates... matching is
// declarative and must not call into user code"). The value's shape
// picks the operator: an object is a time range, an array is set
// membership, a string under a key ending in "Prefix" is a prefix
// match on the key without that suffix, and anything else is
// equality. No key is ignored.
func normalizeFilter(raw map[string]interface{}) graph.NormalizedFilter {
	var clauses []graph.FilterClause
	for field, value := range raw {
		switch v := value.(type) {
		case map[string]interface{}:
			clauses = append(clauses, rangeClause(field, v))
		case []interface{}:
			set := make([]string, 0, len(v))
			for _, item := range v {
				set = append(set, toString(item))
			}
			clauses = append(clauses, graph.FilterClause{Field: field, Op: graph.FilterIn, Set: set})
		case string:
			if strings.HasSuffix(field, "Prefix") {
				clauses = append(clauses, graph.FilterClause{
					Field: strings.TrimSuffix(field, "Prefix"),
					Op:    graph.FilterPrefix,
					Value: v,
				})
				continue
			}
			clauses = append(clauses, graph.FilterClause{Field: field, Op: graph.FilterEquals, Value: v})
		default:
			clauses = append(clauses, graph.FilterClause{Field: field, Op: graph.FilterEquals, Value: v})
		}
	}
	return graph.NormalizedFilter{Clauses: clauses}
}

// rangeClause builds a time_range clause from a {"since": ..., "until":
// ...} sub-object.
func rangeClause(field string, v map[string]interface{}) graph.FilterClause {
	clause := graph.FilterClause{Field: field, Op: graph.FilterTimeRange}
	if since, ok := v["since"]; ok {
		if t, err := time.Parse(time.RFC3339, toString(since)); err == nil {
			clause.Since = t
		}
	}
	if until, ok := v["until"]; ok {
		if t, err := time.Parse(time.RFC3339, toString(until)); err == nil {
			clause.Until = t
		}
	}
	return clause
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// matches reports whether event satisfies every clause of filter (spec
// §4.10). An empty filter matches everything.
func matches(filter graph.NormalizedFilter, event graph.DomainEvent) bool {
	for _, clause := range filter.Clauses {
		if !matchesClause(clause, event) {
			return false
		}
	}
	return true
}

func matchesClause(clause graph.FilterClause, event graph.DomainEvent) bool {
	fieldVal, ok := event.Payload[clause.Field]
	switch clause.Op {
	case graph.FilterEquals:
		return ok && toString(fieldVal) == toString(clause.Value)
	case graph.FilterIn:
		if !ok {
			return false
		}
		s := toString(fieldVal)
		for _, item := range clause.Set {
			if item == s {
				return true
			}
		}
		return false
	case graph.FilterPrefix:
		return ok && strings.HasPrefix(toString(fieldVal), toString(clause.Value))
	case graph.FilterTimeRange:
		ts := event.Timestamp
		if !clause.Since.IsZero() && ts.Before(clause.Since) {
			return false
		}
		if !clause.Until.IsZero() && ts.After(clause.Until) {
			return false
		}
		return true
	default:
		return false
	}
}
