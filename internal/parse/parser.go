package parse

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Amicidal/codegraph-ingest/internal/cache"
	"github.com/Amicidal/codegraph-ingest/internal/graph"
	"github.com/Amicidal/codegraph-ingest/internal/ingesterrors"
	"github.com/Amicidal/codegraph-ingest/internal/resolve"
)

// minResolveNameLength is the minimum identifier length worth an
// expensive cross-file resolution attempt (spec §4.3 shouldUse).
const minResolveNameLength = 2

// Result is the parseFile contract's return value (spec §4.2): the
// full current entity/relationship sets plus the delta against
// whatever was cached, and whether this was a cache-hit no-op.
type Result struct {
	Entities      []graph.Entity
	Relationships []graph.Relationship
	Errors        []ParseIssue
	IsIncremental bool

	AddedEntities      []graph.Entity
	UpdatedEntities    []graph.Entity
	RemovedEntities    []graph.Entity
	AddedRelationships []graph.Relationship
	RemovedRelationships []graph.Relationship
}

// Config bundles the tunables that shape one parser's behavior (spec
// §4.2, §4.3, and the ambient stop-list supplement).
type Config struct {
	StopList           StopListConfig
	IncludeDirectories bool
	ReExportMaxDepth   int
}

// DefaultConfig returns the parser's conservative defaults.
func DefaultConfig() Config {
	return Config{
		StopList:           DefaultStopListConfig(),
		IncludeDirectories: true,
		ReExportMaxDepth:   DefaultReExportDepth,
	}
}

// Parser is C2: the incremental, multi-language parser. It owns no
// state of its own beyond configuration — the file cache and symbol
// index (C1) and the resolver budget (C3) are supplied by the caller
// so the pipeline can share one instance of each across every file.
type Parser struct {
	cfg      Config
	registry *Registry
	exports  *ExportResolver
}

// NewParser builds a parser with its own language registry and
// re-export resolver; cfg controls stop-list and directory-entity
// behavior.
func NewParser(cfg Config) *Parser {
	return &Parser{
		cfg:      cfg,
		registry: NewRegistry(),
		exports:  NewExportResolver(cfg.ReExportMaxDepth),
	}
}

// ParseFile implements the spec §4.2 contract. root is the project
// root absPath is resolved relative to (for deriving fileRel and
// directory entity chains).
func (p *Parser) ParseFile(root, absPath string, fileCache *cache.FileCache, symbolIndex *cache.SymbolIndex, budget *resolve.Budget) (*Result, error) {
	fileRel, err := filepath.Rel(root, absPath)
	if err != nil {
		fileRel = absPath
	}
	fileRel = graph.NormalizePath(fileRel)

	content, readErr := os.ReadFile(absPath)
	cached := fileCache.Get(absPath)

	if readErr != nil {
		if os.IsNotExist(readErr) {
			return p.deletionResult(absPath, fileRel, cached, fileCache, symbolIndex), nil
		}
		return nil, ingesterrors.NewFileErr("read", absPath, readErr)
	}

	contentHash := graph.ContentHash(string(content))
	if cached != nil && cached.ContentHash == contentHash {
		// Cache hit: O(1) empty delta (spec §4.2 guarantee 1).
		return &Result{
			Entities:      cached.Entities,
			Relationships: cached.Relationships,
			IsIncremental: true,
		}, nil
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	cl, known := p.registry.ForExt(ext)
	if !known {
		return &Result{
			Errors: []ParseIssue{{Severity: "warning", Message: "no parser registered for extension " + ext}},
		}, nil
	}

	extraction := extractFile(cl, fileRel, content, p.cfg.StopList)

	fileEnt := graph.Entity{
		ID:      graph.FileEntityID(fileRel),
		Variant: graph.EntityFile,
		Path:    fileRel,
		Hash:    contentHash,
		File: &graph.FileDetail{
			Extension: ext,
			Size:      int64(len(content)),
			LineCount: strings.Count(string(content), "\n") + 1,
			Language:  cl.name,
			IsTest:    looksLikeTest(fileRel),
		},
	}
	entities := append([]graph.Entity{fileEnt}, extraction.entities...)
	relationships := extraction.relationships

	var dirEntities []graph.Entity
	var dirRelationships []graph.Relationship
	if p.cfg.IncludeDirectories {
		dirEntities, dirRelationships = buildDirectoryChain(fileRel, fileEnt.ID)
		entities = append(entities, dirEntities...)
		relationships = append(relationships, dirRelationships...)
	}

	resolveRefs(relationships, fileRel, buildSymbolMap(fileRel, entities), symbolIndex, budget, minResolveNameLength)

	newSymbolMap := buildSymbolMap(fileRel, entities)

	var oldSymbolMap map[string]graph.Entity
	var oldRelationships []graph.Relationship
	isIncremental := cached != nil
	if cached != nil {
		oldSymbolMap = cached.SymbolMap
		oldRelationships = cached.Relationships
	} else {
		oldSymbolMap = map[string]graph.Entity{}
	}

	entityDelta := diffEntities(oldSymbolMap, newSymbolMap)
	relDelta := diffRelationships(oldRelationships, relationships)

	symbolIndex.InvalidateFile(fileRel)
	symbolIndex.AddSymbolsForFile(fileRel, symbolEntitiesOnly(entities))

	fileCache.Put(absPath, &cache.CachedFileInfo{
		ContentHash:   contentHash,
		Entities:      entities,
		Relationships: relationships,
		SymbolMap:     newSymbolMap,
		LastModified:  time.Now(),
	})

	return &Result{
		Entities:              entities,
		Relationships:         relationships,
		Errors:                extraction.errors,
		IsIncremental:         isIncremental,
		AddedEntities:         entityDelta.Added,
		UpdatedEntities:       entityDelta.Updated,
		RemovedEntities:       entityDelta.Removed,
		AddedRelationships:    relDelta.Added,
		RemovedRelationships:  relDelta.Removed,
	}, nil
}

// deletionResult implements spec §4.2's deletion semantics: a
// missing-file read surfaces as a delta whose removed sets come from
// the cached record, then the cache entry and indices are purged.
func (p *Parser) deletionResult(absPath, fileRel string, cached *cache.CachedFileInfo, fileCache *cache.FileCache, symbolIndex *cache.SymbolIndex) *Result {
	res := &Result{IsIncremental: true}
	if cached != nil {
		res.RemovedEntities = cached.Entities
		res.RemovedRelationships = cached.Relationships
	}
	fileCache.Delete(absPath)
	symbolIndex.InvalidateFile(fileRel)
	return res
}

func symbolEntitiesOnly(entities []graph.Entity) []graph.Entity {
	out := make([]graph.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Variant == graph.EntitySymbol {
			out = append(out, e)
		}
	}
	return out
}

func looksLikeTest(fileRel string) bool {
	base := filepath.Base(fileRel)
	return strings.Contains(base, "_test.") || strings.Contains(base, ".test.") || strings.Contains(base, ".spec.")
}

// buildDirectoryChain builds the optional directory entities forming
// a CONTAINS chain from the shallowest directory down to the file
// (spec §4.2 symbol extraction, file entity section).
func buildDirectoryChain(fileRel, fileEntityID string) ([]graph.Entity, []graph.Relationship) {
	dir := filepath.Dir(fileRel)
	if dir == "." || dir == "" {
		return nil, nil
	}
	parts := strings.Split(dir, "/")

	var entities []graph.Entity
	var relationships []graph.Relationship
	var prevID string
	var accum string
	for depth, part := range parts {
		if accum == "" {
			accum = part
		} else {
			accum = accum + "/" + part
		}
		id := graph.DirectoryEntityID(accum)
		entities = append(entities, graph.Entity{
			ID:        id,
			Variant:   graph.EntityDirectory,
			Path:      accum,
			Hash:      graph.ContentHash(accum),
			Directory: &graph.DirectoryDetail{Depth: depth},
		})
		if prevID != "" {
			relationships = append(relationships, *graph.NewRelationship(
				graph.RelContains, prevID, &graph.ToRef{Kind: graph.RefEntity, EntityID: id}, 1.0,
			))
		}
		prevID = id
	}
	if prevID != "" {
		relationships = append(relationships, *graph.NewRelationship(
			graph.RelContains, prevID, &graph.ToRef{Kind: graph.RefEntity, EntityID: fileEntityID}, 1.0,
		))
	}
	return entities, relationships
}
