package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

func TestPool_ScalesUpWhenQueueDeepAndAllBusy(t *testing.T) {
	q := newTestQueue(t)
	cfg := DefaultConfig()
	cfg.MinWorkers = 1
	cfg.MaxWorkers = 4
	cfg.ScaleUpQueueDepth = 1
	cfg.ScaleCooldown = 0
	cfg.PollInterval = 5 * time.Millisecond
	p := NewPool(cfg, q)

	block := make(chan struct{})
	p.RegisterHandler(graph.TaskParse, func(ctx context.Context, task *graph.Task) ([]*graph.Task, error) {
		<-block
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer func() {
		close(block)
		p.Stop()
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(&graph.Task{ID: string(rune('a' + i)), Type: graph.TaskParse, Priority: 1, CreatedAt: time.Now()}, "k"))
	}

	assert.Eventually(t, func() bool {
		return len(p.Snapshot()) > cfg.MinWorkers
	}, time.Second, 10*time.Millisecond)
}

func TestPool_NeverShrinksBelowMinWorkers(t *testing.T) {
	q := newTestQueue(t)
	cfg := DefaultConfig()
	cfg.MinWorkers = 2
	cfg.ScaleDownIdleFor = time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	p := NewPool(cfg, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.GreaterOrEqual(t, len(p.Snapshot()), cfg.MinWorkers)
}
