package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/cache"
	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/parse"
	"github.com/Amicidal/codegraph-ingest/internal/resolve"
)

// BatchWriter is the C6 dependency: a sink for upsert batches. The
// real implementation buffers by fragment kind and flushes on
// size/timeout; tests can fake it directly.
type BatchWriter interface {
	UpsertEntities(ctx context.Context, entities []graph.Entity, priority int) error
	UpsertRelationships(ctx context.Context, relationships []graph.Relationship, priority int) error
}

// EnrichmentHandler runs one enrichment sub-type and returns its
// inner result payload (wrapped into the uniform envelope by
// NewEnrichmentHandler).
type EnrichmentHandler func(ctx context.Context, entityID string) (interface{}, error)

// ParseDeps bundles the C1/C2/C3 collaborators the parse handler needs.
type ParseDeps struct {
	Root        string
	Parser      *parse.Parser
	FileCache   *cache.FileCache
	SymbolIndex *cache.SymbolIndex
	Budget      *resolve.Budget
}

// NewParseHandler builds the `parse` handler (spec §4.5): invoke C2 on
// the event's file, then fan the resulting delta out as
// entity_upsert/relationship_upsert follow-on tasks.
func NewParseHandler(deps ParseDeps) Handler {
	return func(ctx context.Context, task *graph.Task) ([]*graph.Task, error) {
		payload, ok := task.Payload.(graph.ParseTaskPayload)
		if !ok {
			return nil, fmt.Errorf("worker: parse task %s has wrong payload type %T", task.ID, task.Payload)
		}
		event := payload.Event
		if err := event.Validate(); err != nil {
			return nil, fmt.Errorf("worker: invalid change event: %w", err)
		}

		absPath := event.FilePath
		result, err := deps.Parser.ParseFile(deps.Root, absPath, deps.FileCache, deps.SymbolIndex, deps.Budget)
		if err != nil {
			return nil, fmt.Errorf("worker: parse %s: %w", absPath, err)
		}

		var followOn []*graph.Task
		now := time.Now()

		addedEntities := result.Entities
		if result.IsIncremental {
			addedEntities = append(append([]graph.Entity{}, result.AddedEntities...), result.UpdatedEntities...)
		}
		if len(addedEntities) > 0 {
			followOn = append(followOn, &graph.Task{
				ID:           task.ID + ":entities",
				Type:         graph.TaskEntityUpsert,
				Priority:     task.Priority,
				Payload:      graph.UpsertTaskPayload{Entities: addedEntities},
				CreatedAt:    now,
				MaxRetries:   task.MaxRetries,
				PartitionKey: task.PartitionKey,
			})
		}

		relationships := result.Relationships
		if result.IsIncremental {
			relationships = result.AddedRelationships
		}
		if len(relationships) > 0 {
			followOn = append(followOn, &graph.Task{
				ID:           task.ID + ":relationships",
				Type:         graph.TaskRelationshipUpsert,
				Priority:     graph.ClampPriority(task.Priority - 1),
				Payload:      graph.UpsertTaskPayload{Relationships: relationships},
				CreatedAt:    now,
				MaxRetries:   task.MaxRetries,
				PartitionKey: task.PartitionKey,
			})
		}

		return followOn, nil
	}
}

// NewEntityUpsertHandler builds the `entity_upsert` handler: hand a
// batch of entities to C6 (spec §4.5).
func NewEntityUpsertHandler(writer BatchWriter) Handler {
	return func(ctx context.Context, task *graph.Task) ([]*graph.Task, error) {
		payload, ok := task.Payload.(graph.UpsertTaskPayload)
		if !ok {
			return nil, fmt.Errorf("worker: entity_upsert task %s has wrong payload type %T", task.ID, task.Payload)
		}
		if err := writer.UpsertEntities(ctx, payload.Entities, task.Priority); err != nil {
			return nil, fmt.Errorf("worker: upsert entities: %w", err)
		}
		return nil, nil
	}
}

// NewRelationshipUpsertHandler builds the `relationship_upsert`
// handler: hand a batch of relationships to C6 (spec §4.5).
func NewRelationshipUpsertHandler(writer BatchWriter) Handler {
	return func(ctx context.Context, task *graph.Task) ([]*graph.Task, error) {
		payload, ok := task.Payload.(graph.UpsertTaskPayload)
		if !ok {
			return nil, fmt.Errorf("worker: relationship_upsert task %s has wrong payload type %T", task.ID, task.Payload)
		}
		if err := writer.UpsertRelationships(ctx, payload.Relationships, task.Priority); err != nil {
			return nil, fmt.Errorf("worker: upsert relationships: %w", err)
		}
		return nil, nil
	}
}

// NewEnrichmentHandler builds the `enrichment` handler: dispatch by
// sub-type, wrapping each sub-handler's result in the uniform envelope
// `{taskId, entityId, type, success, result|error, duration}` (spec
// §4.5).
func NewEnrichmentHandler(subHandlers map[graph.EnrichmentSubType]EnrichmentHandler, onResult func(graph.EnrichmentResult)) Handler {
	return func(ctx context.Context, task *graph.Task) ([]*graph.Task, error) {
		payload, ok := task.Payload.(graph.EnrichmentTaskPayload)
		if !ok {
			return nil, fmt.Errorf("worker: enrichment task %s has wrong payload type %T", task.ID, task.Payload)
		}

		sub, ok := subHandlers[payload.SubType]
		if !ok {
			return nil, fmt.Errorf("worker: no enrichment handler registered for sub-type %q", payload.SubType)
		}

		start := time.Now()
		result, err := sub(ctx, payload.EntityID)
		envelope := graph.EnrichmentResult{
			TaskID:   task.ID,
			EntityID: payload.EntityID,
			Type:     payload.SubType,
			Duration: time.Since(start),
		}
		if err != nil {
			envelope.Success = false
			envelope.Error = err.Error()
		} else {
			envelope.Success = true
			envelope.Result = result
		}

		if onResult != nil {
			onResult(envelope)
		}
		if err != nil {
			return nil, err
		}
		return nil, nil
	}
}
