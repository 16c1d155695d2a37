package sink

import (
	"context"
	"sync"
)

// FakeGraphSink is an in-memory GraphSink for tests. It records every
// call it receives rather than deduplicating, so tests can assert on
// idempotency at the caller (C6 is responsible for not re-submitting,
// not this fake).
type FakeGraphSink struct {
	mu sync.Mutex

	Entities      []interface{}
	Relationships []interface{}
	Embeddings    []interface{}

	EntitiesCalls      int
	RelationshipsCalls int
	EmbeddingsCalls    int

	FailNextEntities      bool
	FailNextRelationships bool
	FailNextEmbeddings    bool
	FailErr               error
}

func NewFakeGraphSink() *FakeGraphSink {
	return &FakeGraphSink{FailErr: errFakeSinkFailure}
}

var errFakeSinkFailure = fakeSinkError("sink: simulated failure")

type fakeSinkError string

func (e fakeSinkError) Error() string { return string(e) }

func (f *FakeGraphSink) CreateEntitiesBulk(ctx context.Context, entities []interface{}) (BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EntitiesCalls++
	if f.FailNextEntities {
		f.FailNextEntities = false
		return BulkResult{}, f.FailErr
	}
	f.Entities = append(f.Entities, entities...)
	return BulkResult{Success: true, Count: len(entities)}, nil
}

func (f *FakeGraphSink) CreateRelationshipsBulk(ctx context.Context, relationships []interface{}) (BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RelationshipsCalls++
	if f.FailNextRelationships {
		f.FailNextRelationships = false
		return BulkResult{}, f.FailErr
	}
	f.Relationships = append(f.Relationships, relationships...)
	return BulkResult{Success: true, Count: len(relationships)}, nil
}

func (f *FakeGraphSink) CreateEmbeddingsBatch(ctx context.Context, entities []interface{}, options map[string]interface{}) (BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EmbeddingsCalls++
	if f.FailNextEmbeddings {
		f.FailNextEmbeddings = false
		return BulkResult{}, f.FailErr
	}
	f.Embeddings = append(f.Embeddings, entities...)
	return BulkResult{Success: true, Count: len(entities)}, nil
}

// FakeEmbeddingService is an in-memory EmbeddingService for tests.
type FakeEmbeddingService struct {
	mu    sync.Mutex
	Calls int
	Dims  int
}

func NewFakeEmbeddingService(dims int) *FakeEmbeddingService {
	return &FakeEmbeddingService{Dims: dims}
}

func (f *FakeEmbeddingService) GenerateAndStore(ctx context.Context, entity interface{}, opts EmbeddingOptions) (EmbeddingResult, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()

	vec := make([]float32, f.Dims)
	for i := range vec {
		vec[i] = float32(i) / float32(f.Dims)
	}
	return EmbeddingResult{Vector: vec, Metadata: map[string]interface{}{"indexName": opts.IndexName}}, nil
}
