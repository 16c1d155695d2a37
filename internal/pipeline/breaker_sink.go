package pipeline

import (
	"context"

	"github.com/Amicidal/codegraph-ingest/internal/retry"
	"github.com/Amicidal/codegraph-ingest/internal/sink"
)

// breakerGraphSink wraps a sink.GraphSink so every bulk call trips
// through C7's circuit breaker (spec §5: "network calls from C6 to
// the external sink" are a suspension/blocking point worth guarding).
type breakerGraphSink struct {
	inner sink.GraphSink
	b     *retry.Breaker
}

func newBreakerGraphSink(inner sink.GraphSink, b *retry.Breaker) *breakerGraphSink {
	return &breakerGraphSink{inner: inner, b: b}
}

func (s *breakerGraphSink) CreateEntitiesBulk(ctx context.Context, entities []interface{}) (sink.BulkResult, error) {
	var res sink.BulkResult
	err := s.b.Do(func() error {
		var innerErr error
		res, innerErr = s.inner.CreateEntitiesBulk(ctx, entities)
		return innerErr
	})
	return res, err
}

func (s *breakerGraphSink) CreateRelationshipsBulk(ctx context.Context, relationships []interface{}) (sink.BulkResult, error) {
	var res sink.BulkResult
	err := s.b.Do(func() error {
		var innerErr error
		res, innerErr = s.inner.CreateRelationshipsBulk(ctx, relationships)
		return innerErr
	})
	return res, err
}

func (s *breakerGraphSink) CreateEmbeddingsBatch(ctx context.Context, entities []interface{}, options map[string]interface{}) (sink.BulkResult, error) {
	var res sink.BulkResult
	err := s.b.Do(func() error {
		var innerErr error
		res, innerErr = s.inner.CreateEmbeddingsBatch(ctx, entities, options)
		return innerErr
	})
	return res, err
}
