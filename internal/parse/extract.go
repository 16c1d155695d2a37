package parse

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// symbolMatch is one raw query capture for a declaration-shaped node,
// ahead of being turned into a graph.Entity. Grounded on the teacher's
// match/capture walk in internal/parser/parser.go
// extractBasicSymbolsStringRef.
type symbolMatch struct {
	kind      graph.SymbolKind
	node      tree_sitter.Node
	name      string
	entityID  string
	signature string
}

// callSite is one raw `call` capture, resolved to its enclosing
// declared symbol after every symbolMatch is known (spec §4.2
// call-site extraction).
type callSite struct {
	node tree_sitter.Node
	name string
}

// extractionResult is what one file's raw tree-sitter walk produces,
// before diffing against the cache (spec §4.2 contract fields).
type extractionResult struct {
	entities      []graph.Entity
	relationships []graph.Relationship
	errors        []ParseIssue
}

// extractFile runs the compiled language's main query and heritage
// query over the parsed tree and builds entities/relationships for
// one file (spec §4.2 symbol/relationship extraction).
func extractFile(cl *compiledLang, fileRel string, content []byte, stopList StopListConfig) extractionResult {
	var res extractionResult
	if cl.query == nil {
		return res
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	tree := cl.parser.Parse(content, nil)
	if tree == nil {
		res.errors = append(res.errors, ParseIssue{Severity: "error", Message: "parser returned no tree"})
		return res
	}
	defer tree.Close()
	root := tree.RootNode()

	fileEntityID := graph.FileEntityID(fileRel)

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(cl.query, root, content)
	captureNames := cl.query.CaptureNames()

	var declared []symbolMatch
	var calls []callSite
	var decorators []callSite
	seenSignatures := make(map[string]bool)

	for {
		m := matches.Next()
		if m == nil {
			break
		}
		var mainNode *tree_sitter.Node
		var mainCapture string
		nameByCapture := make(map[string]string, 2)

		for _, c := range m.Captures {
			capName := captureNames[c.Index]
			node := c.Node
			text := string(content[node.StartByte():node.EndByte()])
			if strings.HasSuffix(capName, ".name") {
				nameByCapture[capName] = text
				continue
			}
			switch capName {
			case "function", "method", "class", "interface", "type", "variable":
				n := node
				mainNode = &n
				mainCapture = capName
			case "call":
				n := node
				if nm, ok := nameByCapture["call.name"]; ok {
					calls = append(calls, callSite{node: n, name: nm})
				}
			case "decorator":
				n := node
				if nm, ok := nameByCapture["decorator.name"]; ok {
					decorators = append(decorators, callSite{node: n, name: nm})
				}
			}
		}
		if mainNode == nil {
			continue
		}
		name := nameByCapture[mainCapture+".name"]
		if name == "" {
			for _, v := range nameByCapture {
				name = v
				break
			}
		}
		if name == "" {
			continue
		}

		signature := string(content[mainNode.StartByte():mainNode.EndByte()])
		dedupeKey := name + "|" + signature
		if seenSignatures[dedupeKey] {
			continue
		}
		seenSignatures[dedupeKey] = true

		entID := graph.SymbolEntityID(fileRel, name, signature)
		declared = append(declared, symbolMatch{
			kind:      kindForCapture(mainCapture),
			node:      *mainNode,
			name:      name,
			entityID:  entID,
			signature: signature,
		})
	}

	for _, sm := range declared {
		docString := harvestLeadingDocComment(sm.node, content)
		ent := graph.Entity{
			ID:      sm.entityID,
			Variant: graph.EntitySymbol,
			Path:    fileRel,
			Hash:    graph.ContentHash(sm.signature),
			Symbol: &graph.SymbolDetail{
				Name:       sm.name,
				Kind:       sm.kind,
				Signature:  sm.signature,
				Visibility: visibilityOf(sm.name),
				IsExported: visibilityOf(sm.name) == graph.VisibilityPublic,
				DocString:  docString,
			},
		}
		res.entities = append(res.entities, ent)

		res.relationships = append(res.relationships, *graph.NewRelationship(
			graph.RelContains, fileEntityID,
			&graph.ToRef{Kind: graph.RefEntity, EntityID: sm.entityID},
			1.0,
		))
	}

	for _, call := range calls {
		if stopList.IsFiltered(call.name) {
			continue
		}
		owner := enclosingDeclaration(declared, call.node.StartByte())
		if owner == "" {
			owner = fileEntityID
		}
		res.relationships = append(res.relationships, *graph.NewRelationship(
			graph.RelCalls, owner,
			&graph.ToRef{Kind: graph.RefExternal, Name: call.name},
			graph.ScopeExternal.DefaultConfidence(),
		))
	}

	for _, dec := range decorators {
		owner := enclosingDeclaration(declared, dec.node.StartByte())
		if owner == "" {
			continue
		}
		rel := graph.NewRelationship(
			graph.RelReferences, owner,
			&graph.ToRef{Kind: graph.RefExternal, Name: dec.name},
			graph.ScopeExternal.DefaultConfidence(),
		)
		res.relationships = append(res.relationships, *rel)
	}

	if cl.heritage != nil {
		res.relationships = append(res.relationships, extractHeritage(cl, root, content, declared)...)
	}

	return res
}

func kindForCapture(capture string) graph.SymbolKind {
	switch capture {
	case "function", "method":
		return graph.SymbolFunction
	case "class":
		return graph.SymbolClass
	case "interface":
		return graph.SymbolInterface
	case "type":
		return graph.SymbolTypeAlias
	case "variable":
		return graph.SymbolVariable
	default:
		return graph.SymbolVariable
	}
}

// visibilityOf applies one convention to every registered language: a
// leading underscore marks a private identifier; everything else is
// public. No language-specific rule (such as Go's
// lower-case-is-unexported convention) is applied, and protected is
// never assigned.
func visibilityOf(name string) graph.Visibility {
	if strings.HasPrefix(name, "_") {
		return graph.VisibilityPrivate
	}
	return graph.VisibilityPublic
}

// harvestLeadingDocComment walks backward from node over immediately
// preceding comment siblings and concatenates them, matching the
// "docstring harvested from leading comments" requirement (spec §4.2).
func harvestLeadingDocComment(node tree_sitter.Node, content []byte) string {
	var lines []string
	prev := node.PrevSibling()
	for prev != nil {
		kind := prev.Kind()
		if !strings.Contains(kind, "comment") {
			break
		}
		text := string(content[prev.StartByte():prev.EndByte()])
		lines = append([]string{strings.TrimSpace(stripCommentMarkers(text))}, lines...)
		prev = prev.PrevSibling()
	}
	return strings.Join(lines, "\n")
}

func stripCommentMarkers(s string) string {
	s = strings.TrimPrefix(s, "///")
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimSuffix(s, "*/")
	s = strings.TrimPrefix(s, "#")
	return strings.TrimSpace(s)
}

// extractHeritage runs the language's heritage query (extends /
// implements) across the tree and attaches an EXTENDS or IMPLEMENTS
// edge from the enclosing class/struct symbol. Resolution order is
// handled by the caller (ParseFile): this function only produces
// placeholder refs, per spec §4.2 resolution order (a)-(e).
func extractHeritage(cl *compiledLang, root tree_sitter.Node, content []byte, declared []symbolMatch) []graph.Relationship {
	var rels []graph.Relationship
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(cl.heritage, root, content)
	captureNames := cl.heritage.CaptureNames()

	for {
		m := matches.Next()
		if m == nil {
			break
		}
		var subjectEnd uint
		var extendsName, implementsName string
		for _, c := range m.Captures {
			capName := captureNames[c.Index]
			text := string(content[c.Node.StartByte():c.Node.EndByte()])
			switch capName {
			case "heritage.extends":
				extendsName = text
			case "heritage.implements":
				implementsName = text
			}
			if c.Node.EndByte() > subjectEnd {
				subjectEnd = c.Node.EndByte()
			}
		}
		owner := enclosingDeclaration(declared, subjectEnd)
		if owner == "" {
			continue
		}
		if extendsName != "" {
			rels = append(rels, *graph.NewRelationship(graph.RelExtends, owner,
				&graph.ToRef{Kind: graph.RefPlaceholder, Category: graph.CategoryClass, Name: extendsName}, 0.0))
		}
		if implementsName != "" {
			rels = append(rels, *graph.NewRelationship(graph.RelImplements, owner,
				&graph.ToRef{Kind: graph.RefPlaceholder, Category: graph.CategoryInterface, Name: implementsName}, 0.0))
		}
	}
	return rels
}

// enclosingDeclaration finds the declared class/interface/function
// whose node span contains byteOffset — attributing a nested capture
// (a heritage clause, a call expression) to the declaration that
// contains it, picking the smallest (innermost) containing span.
func enclosingDeclaration(declared []symbolMatch, byteOffset uint) string {
	var bestID string
	var bestSpan uint = ^uint(0)
	for _, sm := range declared {
		if sm.node.StartByte() <= byteOffset && byteOffset <= sm.node.EndByte() {
			span := sm.node.EndByte() - sm.node.StartByte()
			if span < bestSpan {
				bestSpan = span
				bestID = sm.entityID
			}
		}
	}
	return bestID
}

// ParseIssue is one entry of the parseFile contract's `errors` array
// (spec §4.2 failure semantics).
type ParseIssue struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (i ParseIssue) String() string {
	return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
}
