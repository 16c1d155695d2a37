package parse

import (
	"github.com/Amicidal/codegraph-ingest/internal/cache"
	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/resolve"
)

// resolveRefs concretizes placeholder/external ToRefs in place: (a)
// local symbol table for the file, (b)/(c) a lookup of the bare name
// in the global name index, (d) resolution of that lookup's result
// when the C3 budget admits it, (e) fallback placeholder left for a
// later pass (or forever, if truly external). No import alias map is
// consulted and re-export chains (ExportResolver) are not followed.
func resolveRefs(relationships []graph.Relationship, fileRel string, localSymbols map[string]graph.Entity, symbolIndex *cache.SymbolIndex, budget *resolve.Budget, minNameLength int) {
	for i := range relationships {
		r := &relationships[i]
		if r.ToRef == nil {
			continue
		}
		switch r.ToRef.Kind {
		case graph.RefPlaceholder, graph.RefExternal:
			resolveOneRef(r, fileRel, localSymbols, symbolIndex, budget, minNameLength)
		}
	}
}

func resolveOneRef(r *graph.Relationship, fileRel string, localSymbols map[string]graph.Entity, symbolIndex *cache.SymbolIndex, budget *resolve.Budget, minNameLength int) {
	name := r.ToRef.Name
	if name == "" {
		return
	}

	// (a) local symbol table: declared in the same file — the
	// cheapest and most confident resolution, never budget-gated.
	if local, ok := localSymbols[fileRel+":"+name]; ok && local.Variant == graph.EntitySymbol {
		r.ToRef = &graph.ToRef{Kind: graph.RefEntity, EntityID: local.ID}
		r.ToEntityID = local.ID
		return
	}

	// (b)/(c) global name-index lookup by bare name (covers symbols
	// declared in other already-parsed files under the same name,
	// without an import path); import aliases and re-export chains are
	// not followed.
	candidates := symbolIndex.NameCandidates(name)
	ambiguous := len(candidates) > 1

	ctx := resolve.LookupContext{
		CrossesFileBoundary: true,
		Ambiguous:           ambiguous,
		NameLength:          len(name),
		MinNameLength:       minNameLength,
	}

	// (d) optional semantic resolver, gated by the C3 budget.
	if budget != nil && budget.Use(ctx) {
		switch len(candidates) {
		case 1:
			r.ToRef = &graph.ToRef{Kind: graph.RefEntity, EntityID: candidates[0].ID}
			r.ToEntityID = candidates[0].ID
			return
		case 0:
			// no exact candidate; fall through to (e) with fuzzy
			// suggestions attached for operator triage.
		default:
			r.ToRef.Kind = graph.RefExternal
			r.ToRef.Ambiguous = true
			r.ToRef.CandidateCount = len(candidates)
			return
		}
	}

	// (e) fallback: stays external/placeholder. Attach fuzzy name
	// suggestions when nothing concrete was found, per the
	// SPEC_FULL.md name-suggestion supplement.
	if len(candidates) == 0 {
		r.ToRef.SuggestedCandidates = symbolIndex.SuggestedCandidates(name, 5)
	}
}
