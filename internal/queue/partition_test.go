package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

func TestPartition_HeapOrdersByPriorityThenScheduledThenCreated(t *testing.T) {
	p := newPartition(10)
	now := time.Now()

	a := &graph.Task{ID: "a", Priority: 5, CreatedAt: now}
	b := &graph.Task{ID: "b", Priority: 5, CreatedAt: now.Add(time.Second)}
	c := &graph.Task{ID: "c", Priority: 9, CreatedAt: now}

	require.NoError(t, p.enqueue(a))
	require.NoError(t, p.enqueue(b))
	require.NoError(t, p.enqueue(c))

	first, err := p.dequeue()
	require.NoError(t, err)
	assert.Equal(t, "c", first.ID)

	second, err := p.dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", second.ID)

	third, err := p.dequeue()
	require.NoError(t, err)
	assert.Equal(t, "b", third.ID)
}

func TestPartition_EnqueueFullReturnsErrQueueFull(t *testing.T) {
	p := newPartition(1)
	require.NoError(t, p.enqueue(&graph.Task{ID: "a"}))
	err := p.enqueue(&graph.Task{ID: "b"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestPartition_EnqueueDuplicateIDIsIdempotent(t *testing.T) {
	p := newPartition(10)
	require.NoError(t, p.enqueue(&graph.Task{ID: "a", Priority: 1}))
	require.NoError(t, p.enqueue(&graph.Task{ID: "a", Priority: 9}))
	assert.Equal(t, 1, p.depth())
}

func TestPartition_DequeueEmptyReturnsErrEmpty(t *testing.T) {
	p := newPartition(10)
	_, err := p.dequeue()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPartition_RemoveByID(t *testing.T) {
	p := newPartition(10)
	require.NoError(t, p.enqueue(&graph.Task{ID: "a", Priority: 1}))
	require.NoError(t, p.enqueue(&graph.Task{ID: "b", Priority: 5}))
	require.NoError(t, p.enqueue(&graph.Task{ID: "c", Priority: 3}))

	assert.True(t, p.remove("b"))
	assert.False(t, p.remove("nonexistent"))
	assert.Equal(t, 2, p.depth())

	first, err := p.dequeue()
	require.NoError(t, err)
	assert.Equal(t, "c", first.ID)
}

func TestPartition_OldestCreatedAt(t *testing.T) {
	p := newPartition(10)
	now := time.Now()
	require.NoError(t, p.enqueue(&graph.Task{ID: "newer", Priority: 1, CreatedAt: now}))
	require.NoError(t, p.enqueue(&graph.Task{ID: "older", Priority: 1, CreatedAt: now.Add(-time.Hour)}))

	oldest, ok := p.oldestCreatedAt()
	require.True(t, ok)
	assert.Equal(t, "older", oldest.ID)
}

func TestPartition_DequeueNStopsWhenEmpty(t *testing.T) {
	p := newPartition(10)
	require.NoError(t, p.enqueue(&graph.Task{ID: "a", Priority: 1}))

	got := p.dequeueN(5)
	assert.Len(t, got, 1)
}
