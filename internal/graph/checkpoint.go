package graph

import "time"

// CheckpointReason names why a checkpoint snapshot was created (spec §3).
type CheckpointReason string

const (
	ReasonDaily    CheckpointReason = "daily"
	ReasonIncident CheckpointReason = "incident"
	ReasonManual   CheckpointReason = "manual"
)

// Checkpoint is a named subgraph snapshot seeded by entity ids,
// bounded by hops and time (spec §3, §4.11).
type Checkpoint struct {
	ID        string           `json:"id"`
	Reason    CheckpointReason `json:"reason"`
	SeedIDs   []string         `json:"seedEntityIds"`
	HopLimit  int              `json:"hopLimit"`
	Since     time.Time        `json:"since,omitempty"`
	Until     time.Time        `json:"until,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// CheckpointSummary is a count-by-type rollup of a checkpoint's
// membership (spec §4.11 summary operation).
type CheckpointSummary struct {
	CheckpointID        string         `json:"checkpointId"`
	EntityCountByKind    map[string]int `json:"entityCountByKind"`
	RelationshipCountByType map[string]int `json:"relationshipCountByType"`
	TotalEntities        int            `json:"totalEntities"`
	TotalRelationships   int            `json:"totalRelationships"`
}

// CheckpointExport is the canonical JSON export format (spec §6).
type CheckpointExport struct {
	Checkpoint    Checkpoint     `json:"checkpoint"`
	Members       []string       `json:"members"`
	Relationships []Relationship `json:"relationships,omitempty"`
}
