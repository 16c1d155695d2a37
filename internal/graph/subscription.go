package graph

import "time"

// FilterOp is the predicate kind a normalized filter clause applies.
type FilterOp string

const (
	FilterEquals     FilterOp = "equals"
	FilterIn         FilterOp = "in"
	FilterPrefix     FilterOp = "prefix"
	FilterTimeRange  FilterOp = "time_range"
)

// FilterClause is one predicate of a normalized filter; a normalized
// filter is the intersection (AND) of its clauses (spec §4.10).
type FilterClause struct {
	Field string      `json:"field"`
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value,omitempty"`
	Set   []string    `json:"set,omitempty"`
	Since time.Time   `json:"since,omitempty"`
	Until time.Time   `json:"until,omitempty"`
}

// NormalizedFilter is an intersection of predicates over the event
// payload. Matching is declarative data, never user code (spec §4.10).
type NormalizedFilter struct {
	Clauses []FilterClause `json:"clauses"`
}

// Subscription is owned by the fan-out session manager (spec §3).
type Subscription struct {
	ID             string                 `json:"id"`
	ConnectionID   string                 `json:"connectionId"`
	EventType      string                 `json:"eventType"`
	RawFilter      map[string]interface{} `json:"rawFilter,omitempty"`
	Normalized     NormalizedFilter       `json:"normalizedFilter"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// DomainEvent is a change event fanned out to subscribers (spec §2,
// §4.10 "event" message).
type DomainEvent struct {
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}
