package graph

import "time"

// TaskType enumerates the internal work item kinds (spec §3, §4.5).
type TaskType string

const (
	TaskParse             TaskType = "parse"
	TaskEntityUpsert      TaskType = "entity_upsert"
	TaskRelationshipUpsert TaskType = "relationship_upsert"
	TaskEnrichment        TaskType = "enrichment"
)

// Task is the internal work item queued by the orchestrator or
// re-queued by the worker pool (spec §3).
type Task struct {
	ID           string                 `json:"id"`
	Type         TaskType               `json:"type"`
	Priority     int                    `json:"priority"` // 1..10
	Payload      interface{}            `json:"payload"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	RetryCount   int                    `json:"retryCount"`
	MaxRetries   int                    `json:"maxRetries"`
	CreatedAt    time.Time              `json:"createdAt"`
	ScheduledAt  time.Time              `json:"scheduledAt,omitempty"`

	// PartitionKey drives partition assignment in C4 (namespace/module).
	PartitionKey string `json:"partitionKey,omitempty"`
}

// IsDue reports whether a scheduled task is ready to run.
func (t *Task) IsDue(now time.Time) bool {
	return t.ScheduledAt.IsZero() || !t.ScheduledAt.After(now)
}

// ClampPriority bounds a priority value to the valid 1..10 range
// (spec §3 Task, §4.9 priority assignment cap).
func ClampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// ParseTaskPayload is the payload carried by a `parse` task.
type ParseTaskPayload struct {
	Event ChangeEvent `json:"event"`
}

// UpsertTaskPayload is the payload carried by `entity_upsert` /
// `relationship_upsert` tasks.
type UpsertTaskPayload struct {
	Entities      []Entity       `json:"entities,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// EnrichmentSubType distinguishes enrichment task handlers.
type EnrichmentSubType string

const (
	EnrichEmbedding       EnrichmentSubType = "embedding"
	EnrichImpactAnalysis  EnrichmentSubType = "impact-analysis"
	EnrichDocumentation   EnrichmentSubType = "documentation"
	EnrichSecurity        EnrichmentSubType = "security"
)

// EnrichmentTaskPayload is the payload carried by an `enrichment` task.
type EnrichmentTaskPayload struct {
	EntityID string            `json:"entityId"`
	SubType  EnrichmentSubType `json:"subType"`
}

// EnrichmentResult is the uniform outer envelope for enrichment
// handler results (spec §4.5): the inner shape varies per sub-type
// but the envelope is fixed.
type EnrichmentResult struct {
	TaskID   string            `json:"taskId"`
	EntityID string            `json:"entityId"`
	Type     EnrichmentSubType `json:"type"`
	Success  bool              `json:"success"`
	Result   interface{}       `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration"`
}
