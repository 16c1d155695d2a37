// Package checkpoint implements C11: named subgraph snapshots seeded
// by entity ids, bounded by hop count and an optional time window,
// plus a standalone time-travel traversal operation. Grounded on the
// teacher's internal/git/analyzer.go (an Analyzer holding a read-only
// index collaborator and producing a bounded report from a change
// set), generalized from git-diff analysis to checkpoint snapshotting
// of the same underlying entity/relationship graph.
package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

const defaultHopLimit = 2

var (
	// ErrNotFound is returned when a checkpoint id is unknown.
	ErrNotFound = fmt.Errorf("checkpoint: not found")
)

// storedCheckpoint is a checkpoint's full internal record: the public
// metadata plus its membership bitmap and captured relationships.
type storedCheckpoint struct {
	meta          graph.Checkpoint
	members       *roaring.Bitmap
	relationships []graph.Relationship
}

// Manager owns the checkpoint registry and the BFS collaborator
// (spec §4.11). Safe for concurrent use.
type Manager struct {
	reader   GraphReader
	ordinals *ordinalAllocator

	mu          sync.RWMutex
	checkpoints map[string]*storedCheckpoint
}

// NewManager builds a checkpoint manager reading the graph through
// reader.
func NewManager(reader GraphReader) *Manager {
	return &Manager{
		reader:      reader,
		ordinals:    newOrdinalAllocator(),
		checkpoints: make(map[string]*storedCheckpoint),
	}
}

// Create snapshots the subgraph reachable from seedIDs within hopLimit
// hops (default 2 if hopLimit <= 0) and, if since/until are non-zero,
// restricted to relationships last modified in that window (spec
// §4.11).
func (m *Manager) Create(ctx context.Context, reason graph.CheckpointReason, seedIDs []string, hopLimit int, since, until time.Time) (graph.Checkpoint, error) {
	if hopLimit <= 0 {
		hopLimit = defaultHopLimit
	}

	result, err := bfs(ctx, m.reader, seedIDs, hopLimit, TraversalOptions{MaxDepth: hopLimit, Since: since, Until: until})
	if err != nil {
		return graph.Checkpoint{}, err
	}

	meta := graph.Checkpoint{
		ID:        uuid.NewString(),
		Reason:    reason,
		SeedIDs:   append([]string(nil), seedIDs...),
		HopLimit:  hopLimit,
		Since:     since,
		Until:     until,
		CreatedAt: time.Now(),
	}

	members := roaring.New()
	for _, id := range result.EntityIDs {
		members.Add(m.ordinals.ordinal(id))
	}

	m.mu.Lock()
	m.checkpoints[meta.ID] = &storedCheckpoint{meta: meta, members: members, relationships: result.Relationships}
	m.mu.Unlock()

	return meta, nil
}

// List returns every known checkpoint's metadata, newest first.
func (m *Manager) List() []graph.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]graph.Checkpoint, 0, len(m.checkpoints))
	for _, cp := range m.checkpoints {
		out = append(out, cp.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Get returns one checkpoint's metadata.
func (m *Manager) Get(id string) (graph.Checkpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return graph.Checkpoint{}, false
	}
	return cp.meta, true
}

// Members pages through a checkpoint's member entity ids in a stable
// (ordinal) order, spec §4.11 "get members (paged)". page is
// zero-indexed.
func (m *Manager) Members(id string, page, pageSize int) ([]string, error) {
	cp, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	ords := cp.members.ToArray()
	start := page * pageSize
	if start >= len(ords) {
		return []string{}, nil
	}
	end := start + pageSize
	if end > len(ords) {
		end = len(ords)
	}

	out := make([]string, 0, end-start)
	for _, ord := range ords[start:end] {
		if entityID, ok := m.ordinals.id(ord); ok {
			out = append(out, entityID)
		}
	}
	return out, nil
}

// Summary rolls up a checkpoint's membership by entity kind and its
// captured relationships by type (spec §4.11 summary operation).
func (m *Manager) Summary(ctx context.Context, id string) (graph.CheckpointSummary, error) {
	cp, err := m.lookup(id)
	if err != nil {
		return graph.CheckpointSummary{}, err
	}

	summary := graph.CheckpointSummary{
		CheckpointID:            id,
		EntityCountByKind:       make(map[string]int),
		RelationshipCountByType: make(map[string]int),
	}

	for _, ord := range cp.members.ToArray() {
		entityID, ok := m.ordinals.id(ord)
		if !ok {
			continue
		}
		entity, ok, err := m.reader.GetEntity(ctx, entityID)
		if err != nil {
			return graph.CheckpointSummary{}, err
		}
		if !ok {
			continue
		}
		summary.EntityCountByKind[entity.Variant.String()]++
		summary.TotalEntities++
	}

	for _, rel := range cp.relationships {
		summary.RelationshipCountByType[string(rel.Type)]++
		summary.TotalRelationships++
	}

	return summary, nil
}

// Export produces the canonical JSON export shape (spec §6).
func (m *Manager) Export(id string) (graph.CheckpointExport, error) {
	cp, err := m.lookup(id)
	if err != nil {
		return graph.CheckpointExport{}, err
	}

	members := make([]string, 0, cp.members.GetCardinality())
	for _, ord := range cp.members.ToArray() {
		if entityID, ok := m.ordinals.id(ord); ok {
			members = append(members, entityID)
		}
	}

	return graph.CheckpointExport{
		Checkpoint:    cp.meta,
		Members:       members,
		Relationships: append([]graph.Relationship(nil), cp.relationships...),
	}, nil
}

// Import loads a previously exported checkpoint. When preserveIDs is
// false the checkpoint is re-issued a fresh id, guaranteeing re-import
// of the same export never collides with a live checkpoint of that
// id; preserveIDs is the explicit opt-in to keep the original id (spec
// §4.11 "import (opt-in original-id preservation)").
func (m *Manager) Import(export graph.CheckpointExport, preserveIDs bool) (graph.Checkpoint, error) {
	meta := export.Checkpoint
	if !preserveIDs {
		meta.ID = uuid.NewString()
	}

	members := roaring.New()
	for _, id := range export.Members {
		members.Add(m.ordinals.ordinal(id))
	}

	m.mu.Lock()
	m.checkpoints[meta.ID] = &storedCheckpoint{
		meta:          meta,
		members:       members,
		relationships: append([]graph.Relationship(nil), export.Relationships...),
	}
	m.mu.Unlock()

	return meta, nil
}

// Delete removes a checkpoint. Deleting an unknown id is a no-op,
// matching the idempotent-by-id convention used throughout the
// pipeline's external interfaces (spec §6).
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, id)
}

// Traverse runs the standalone time-travel traversal operation from a
// single start node (spec §4.11), independent of any stored
// checkpoint.
func (m *Manager) Traverse(ctx context.Context, start string, opts TraversalOptions) (TraversalResult, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultHopLimit
	}
	return bfs(ctx, m.reader, []string{start}, maxDepth, opts)
}

func (m *Manager) lookup(id string) (*storedCheckpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cp, nil
}
