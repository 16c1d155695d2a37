// Package graph defines the shared domain model for the ingestion
// pipeline: change events, entities, relationships, tasks,
// subscriptions and checkpoints (spec §3).
package graph

import (
	"fmt"
	"strings"
	"time"
)

// EventKind is the external trigger kind for a ChangeEvent.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventModified, EventDeleted:
		return true
	default:
		return false
	}
}

// ChangeEvent is the external trigger that a file was created,
// modified or deleted. It is created once at edge ingress and
// consumed once; it survives retries via the task payload.
type ChangeEvent struct {
	ID        string                 `json:"id"`
	Namespace string                 `json:"namespace"`
	Module    string                 `json:"module"`
	FilePath  string                 `json:"filePath"`
	EventType EventKind              `json:"eventType"`
	Timestamp time.Time              `json:"timestamp"`
	Size      int64                  `json:"size"`
	DiffHash  string                 `json:"diffHash"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the minimal shape a ChangeEvent must satisfy to be
// accepted into the pipeline (spec §7: InvalidInput is non-retryable).
func (e *ChangeEvent) Validate() error {
	if e == nil {
		return fmt.Errorf("change event is nil")
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("change event id is empty")
	}
	if strings.TrimSpace(e.FilePath) == "" {
		return fmt.Errorf("change event filePath is empty")
	}
	if !e.EventType.Valid() {
		return fmt.Errorf("change event type %q is invalid", e.EventType)
	}
	return nil
}

// NormalizedPath returns the POSIX-normalized path relative to the
// workspace root, matching the Entity.path invariant (spec §3).
func (e *ChangeEvent) NormalizedPath() string {
	return NormalizePath(e.FilePath)
}

// NormalizePath converts a path to POSIX-style forward slashes with
// no leading "./" and no trailing slash.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}
