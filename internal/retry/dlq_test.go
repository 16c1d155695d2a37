package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

func TestDLQ_AddAndList(t *testing.T) {
	d := NewDLQ(DLQConfig{Enabled: true, MaxSize: 10, RetentionTime: time.Hour})
	d.Add(&graph.Task{ID: "t1"}, errors.New("boom"), 3)

	entries := d.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "t1", entries[0].Task.ID)
	assert.Equal(t, 3, entries[0].Attempts)
}

func TestDLQ_EvictsOldestWhenFull(t *testing.T) {
	d := NewDLQ(DLQConfig{Enabled: true, MaxSize: 2, RetentionTime: time.Hour})
	d.Add(&graph.Task{ID: "t1"}, errors.New("e1"), 1)
	d.Add(&graph.Task{ID: "t2"}, errors.New("e2"), 1)
	d.Add(&graph.Task{ID: "t3"}, errors.New("e3"), 1)

	assert.Equal(t, 2, d.Len())
	ids := map[string]bool{}
	for _, e := range d.List() {
		ids[e.Task.ID] = true
	}
	assert.True(t, ids["t3"])
}

func TestDLQ_RequeueResetsRetryCountAndRemovesEntry(t *testing.T) {
	d := NewDLQ(DLQConfig{Enabled: true, MaxSize: 10, RetentionTime: time.Hour})
	d.Add(&graph.Task{ID: "t1", RetryCount: 5}, errors.New("boom"), 5)

	task, ok := d.Requeue("t1")
	require.True(t, ok)
	assert.Equal(t, 0, task.RetryCount)
	assert.Equal(t, 0, d.Len())

	_, ok = d.Requeue("t1")
	assert.False(t, ok)
}

func TestDLQ_SweepRemovesExpiredEntries(t *testing.T) {
	d := NewDLQ(DLQConfig{Enabled: true, MaxSize: 10, RetentionTime: time.Millisecond})
	d.Add(&graph.Task{ID: "t1"}, errors.New("boom"), 1)
	time.Sleep(5 * time.Millisecond)

	removed := d.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, d.Len())
}

func TestDLQ_DisabledDoesNotRecord(t *testing.T) {
	d := NewDLQ(DLQConfig{Enabled: false, MaxSize: 10, RetentionTime: time.Hour})
	d.Add(&graph.Task{ID: "t1"}, errors.New("boom"), 1)
	assert.Equal(t, 0, d.Len())
}
