package writer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/sink"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.EntityBatchSize = 2
	cfg.EntityBatchTimeout = 20 * time.Millisecond
	cfg.RelationshipBatchSize = 2
	cfg.RelationshipBatchTimeout = 20 * time.Millisecond
	cfg.EmbeddingBatchSize = 2
	cfg.EmbeddingBatchTimeout = 20 * time.Millisecond
	cfg.MaxInFlight = 2
	cfg.MaxAttempts = 2
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 5 * time.Millisecond
	cfg.IdempotencyTTL = time.Second
	return cfg
}

func TestWriter_FlushesOnSizeTrigger(t *testing.T) {
	s := sink.NewFakeGraphSink()
	w := NewWriter(smallConfig(), s, 1, nil)
	defer w.Close()

	w.SubmitEntities([]graph.Entity{{ID: "e1"}, {ID: "e2"}}, 5, 0)

	assert.Eventually(t, func() bool {
		return s.EntitiesCalls == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, s.Entities, 2)
}

func TestWriter_FlushesOnTimeout(t *testing.T) {
	s := sink.NewFakeGraphSink()
	w := NewWriter(smallConfig(), s, 1, nil)
	defer w.Close()

	w.SubmitEntities([]graph.Entity{{ID: "e1"}}, 5, 0)

	assert.Eventually(t, func() bool {
		return s.EntitiesCalls == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWriter_ExplicitFlush(t *testing.T) {
	s := sink.NewFakeGraphSink()
	cfg := smallConfig()
	cfg.EntityBatchSize = 100
	cfg.EntityBatchTimeout = time.Hour
	w := NewWriter(cfg, s, 1, nil)
	defer w.Close()

	w.SubmitEntities([]graph.Entity{{ID: "e1"}}, 5, 0)
	w.Flush(context.Background())

	assert.Equal(t, 1, s.EntitiesCalls)
}

func TestWriter_DropsStaleEpochBatch(t *testing.T) {
	s := sink.NewFakeGraphSink()
	w := NewWriter(smallConfig(), s, 7, nil)
	defer w.Close()

	w.SubmitEntities([]graph.Entity{{ID: "e1"}}, 5, 3) // stale epoch, writer is at epoch 7
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, s.EntitiesCalls)
}

func TestWriter_IdempotencySuppressesDuplicateBatch(t *testing.T) {
	s := sink.NewFakeGraphSink()
	cfg := smallConfig()
	cfg.EntityBatchSize = 1
	w := NewWriter(cfg, s, 1, nil)
	defer w.Close()

	w.SubmitEntities([]graph.Entity{{ID: "dup"}}, 5, 0)
	assert.Eventually(t, func() bool { return s.EntitiesCalls == 1 }, time.Second, 5*time.Millisecond)

	w.commit(context.Background(), FragmentEntity, []fragment{{id: "dup", value: graph.Entity{ID: "dup"}}})
	assert.Equal(t, 1, s.EntitiesCalls, "duplicate batch key should be suppressed within the TTL")
}

func TestWriter_RelationshipFlushForceDrainsOverlappingEntities(t *testing.T) {
	s := sink.NewFakeGraphSink()
	cfg := smallConfig()
	cfg.EntityBatchSize = 100
	cfg.EntityBatchTimeout = time.Hour
	cfg.RelationshipBatchSize = 1
	w := NewWriter(cfg, s, 1, nil)
	defer w.Close()

	w.SubmitEntities([]graph.Entity{{ID: "e1"}}, 5, 0)
	w.SubmitRelationships([]graph.Relationship{{ID: "r1", FromEntityID: "e1", ToEntityID: "e2"}}, 5, 0)

	assert.Eventually(t, func() bool {
		return s.EntitiesCalls == 1 && s.RelationshipsCalls == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWriter_RelationshipFlushWithoutOverlapDoesNotTouchEntityBuffer(t *testing.T) {
	s := sink.NewFakeGraphSink()
	cfg := smallConfig()
	cfg.EntityBatchSize = 100
	cfg.EntityBatchTimeout = time.Hour
	cfg.RelationshipBatchSize = 1
	w := NewWriter(cfg, s, 1, nil)
	defer w.Close()

	w.SubmitEntities([]graph.Entity{{ID: "unrelated"}}, 5, 0)
	w.SubmitRelationships([]graph.Relationship{{ID: "r1", FromEntityID: "e1", ToEntityID: "e2"}}, 5, 0)

	assert.Eventually(t, func() bool {
		return s.RelationshipsCalls == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.EntitiesCalls)
}

func TestWriter_DeadLettersPersistentFailureAboveIndividualThreshold(t *testing.T) {
	s := sink.NewFakeGraphSink()
	cfg := smallConfig()
	cfg.MaxAttempts = 1
	cfg.IndividualRetryThreshold = 1
	w := NewWriter(cfg, s, 1, nil)
	defer w.Close()

	var dlKind FragmentKind
	var dlCount int
	w.onDeadLetter = func(kind FragmentKind, fragments []interface{}, cause error) {
		dlKind = kind
		dlCount = len(fragments)
	}

	s.FailNextEntities = true
	entities := []graph.Entity{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}
	w.commit(context.Background(), FragmentEntity, []fragment{
		{id: "e1", value: entities[0]},
		{id: "e2", value: entities[1]},
		{id: "e3", value: entities[2]},
	})

	require.Equal(t, FragmentEntity, dlKind)
	assert.Equal(t, 3, dlCount)
}

func TestWriter_RetriesIndividuallyForSmallPersistentFailure(t *testing.T) {
	s := sink.NewFakeGraphSink()
	cfg := smallConfig()
	cfg.MaxAttempts = 1
	cfg.IndividualRetryThreshold = 10
	w := NewWriter(cfg, s, 1, nil)
	defer w.Close()

	s.FailNextEntities = true
	w.commit(context.Background(), FragmentEntity, []fragment{
		{id: "e1", value: graph.Entity{ID: "e1"}},
	})

	assert.Equal(t, 2, s.EntitiesCalls, "one failed batch attempt + one individual retry")
}

func TestFragmentKind_String(t *testing.T) {
	assert.Equal(t, "entity", FragmentEntity.String())
	assert.Equal(t, "relationship", FragmentRelationship.String())
	assert.Equal(t, "embedding", FragmentEmbedding.String())
}
