package graph

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// RelationshipType enumerates the directed edge kinds (spec §1).
type RelationshipType string

const (
	RelContains     RelationshipType = "CONTAINS"
	RelExtends      RelationshipType = "EXTENDS"
	RelImplements   RelationshipType = "IMPLEMENTS"
	RelReferences   RelationshipType = "REFERENCES"
	RelDependsOn    RelationshipType = "DEPENDS_ON"
	RelParamType    RelationshipType = "PARAM_TYPE"
	RelReturnsType  RelationshipType = "RETURNS_TYPE"
	RelCalls        RelationshipType = "CALLS"
	RelImports      RelationshipType = "IMPORTS"
)

// RefKind is the tagged variant of a lazy resolution target (spec §3).
type RefKind uint8

const (
	RefEntity RefKind = iota
	RefFileSymbol
	RefExternal
	RefPlaceholder
)

// PlaceholderCategory names the known category of an unresolved
// placeholder binding.
type PlaceholderCategory string

const (
	CategoryClass     PlaceholderCategory = "class"
	CategoryInterface PlaceholderCategory = "interface"
	CategoryFunction  PlaceholderCategory = "function"
	CategoryTypeAlias PlaceholderCategory = "typeAlias"
)

// ToRef is the lazy resolution target carried by a Relationship. Only
// the fields relevant to Kind are populated; the resolver
// pattern-matches on Kind rather than using reflection (spec §9).
type ToRef struct {
	Kind RefKind `json:"kind"`

	// RefEntity
	EntityID string `json:"id,omitempty"`

	// RefFileSymbol
	File string `json:"file,omitempty"`
	Name string `json:"name,omitempty"`

	// RefExternal / RefPlaceholder also use Name above.
	Category PlaceholderCategory `json:"category,omitempty"`

	// Ambiguity metadata: Ambiguous and CandidateCount are set when the
	// name index has more than one candidate for the ref (spec §4.2
	// ordering/tie-breaks); SuggestedCandidates is set when it has none.
	Ambiguous          bool     `json:"ambiguous,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
	SuggestedCandidates []string `json:"suggestedCandidates,omitempty"`
}

// Relationship is the directed edge described in spec §3.
type Relationship struct {
	ID             string           `json:"id"`
	Type           RelationshipType `json:"type"`
	FromEntityID   string           `json:"fromEntityId"`
	ToEntityID     string           `json:"toEntityId,omitempty"`
	ToRef          *ToRef           `json:"toRef,omitempty"`
	Confidence     float64          `json:"confidence"`
	Version        int              `json:"version"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastModifiedAt time.Time        `json:"lastModifiedAt"`
}

// targetKey derives the canonical, target-agnostic key fragment used
// in the relationship's canonical identity (spec §3, §4.2).
//
// Stable prefixes: ENT:id, FS:file:name, EXT:name, PLH:category:name,
// RAW:raw — in that documented order of preference.
func targetKey(r *Relationship) string {
	if r.ToRef != nil {
		switch r.ToRef.Kind {
		case RefEntity:
			return "ENT:" + r.ToRef.EntityID
		case RefFileSymbol:
			return fmt.Sprintf("FS:%s:%s", NormalizePath(r.ToRef.File), r.ToRef.Name)
		case RefExternal:
			return "EXT:" + r.ToRef.Name
		case RefPlaceholder:
			return fmt.Sprintf("PLH:%s:%s", r.ToRef.Category, r.ToRef.Name)
		}
	}
	if r.ToEntityID != "" {
		return "RAW:" + r.ToEntityID
	}
	return "RAW:"
}

// CanonicalKey computes `fromId | type | targetKey`, the textual key
// whose stability across parses is what enables relationship-level
// incremental diffing (spec §3, §4.2, §9 cyclic references note).
func CanonicalKey(r *Relationship) string {
	return fmt.Sprintf("%s|%s|%s", r.FromEntityID, r.Type, targetKey(r))
}

// RelationshipID computes the stable identity
// hash(fromEntityId | type | canonicalTargetKey) (spec §3). Two
// passes over the same source produce identical ids.
func RelationshipID(r *Relationship) string {
	key := CanonicalKey(r)
	h := xxhash.Sum64String(key)
	return fmt.Sprintf("rel:%016x", h)
}

// NewRelationship builds a Relationship whose ID is derived from its
// canonical key, at version 1 with both timestamps set to now.
// confidence is stored as given; the caller chooses it (scope
// defaults: DependencyScope.DefaultConfidence).
func NewRelationship(relType RelationshipType, fromID string, ref *ToRef, confidence float64) *Relationship {
	now := time.Now()
	r := &Relationship{
		Type:           relType,
		FromEntityID:   fromID,
		ToRef:          ref,
		Confidence:     confidence,
		Version:        1,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	if ref != nil && ref.Kind == RefEntity {
		r.ToEntityID = ref.EntityID
	}
	r.ID = RelationshipID(r)
	return r
}

// DependencyScope classifies a DEPENDS_ON edge's origin, driving the
// default confidence values from spec §4.2.
type DependencyScope string

const (
	ScopeLocal    DependencyScope = "local"
	ScopeImported DependencyScope = "imported"
	ScopeExternal DependencyScope = "external"
)

// DefaultConfidence returns the spec-mandated default confidence for
// a DEPENDS_ON edge's scope.
func (s DependencyScope) DefaultConfidence() float64 {
	switch s {
	case ScopeLocal:
		return 0.9
	case ScopeImported:
		return 0.6
	case ScopeExternal:
		return 0.4
	default:
		return 0.0
	}
}
