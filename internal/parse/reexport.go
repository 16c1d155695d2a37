package parse

import "sync"

// ExportBinding is one resolved entry of a module's export map: the
// name a consumer imports, resolved back to where it was actually
// declared (spec §4.2 C2.a).
type ExportBinding struct {
	OriginFile string
	OriginName string
	Depth      int
}

// ModuleExports is a module's raw `export * from …` / `export {x as
// y} from …` statements, as gathered during extraction — the input to
// ExportResolver.Resolve.
type ModuleExports struct {
	// Direct maps an exported local name to its declaration file (this
	// module declares it itself).
	Direct map[string]string
	// ReExportAll lists modules this module re-exports everything from
	// (`export * from "./other"`).
	ReExportAll []string
	// ReExportNamed maps an exported name to the (sourceModule,
	// originalName) pair it aliases (`export { x as y } from "./other"`).
	ReExportNamed map[string]ReExportTarget
}

// ReExportTarget names the module/name pair behind a `export {x as y}
// from "module"` statement.
type ReExportTarget struct {
	Module       string
	OriginalName string
}

// ExportResolver lazily builds and memoizes per-module export maps,
// following re-export chains up to a bounded depth (spec §4.2 C2.a).
type ExportResolver struct {
	maxDepth int

	mu      sync.Mutex
	raw     map[string]*ModuleExports         // module -> its own raw exports
	memo    map[string]map[string]ExportBinding // module -> resolved export map
}

// DefaultReExportDepth bounds re-export chain following so a cyclic or
// very deep re-export graph cannot cause unbounded recursion.
const DefaultReExportDepth = 8

// NewExportResolver creates a resolver with the given bounded depth
// (DefaultReExportDepth if maxDepth <= 0).
func NewExportResolver(maxDepth int) *ExportResolver {
	if maxDepth <= 0 {
		maxDepth = DefaultReExportDepth
	}
	return &ExportResolver{
		maxDepth: maxDepth,
		raw:      make(map[string]*ModuleExports),
		memo:     make(map[string]map[string]ExportBinding),
	}
}

// SetModuleExports registers (or replaces) a module's raw export
// statements, invalidating any memoized resolution that depended on
// it — called whenever a module's file is (re)parsed.
func (r *ExportResolver) SetModuleExports(module string, exports *ModuleExports) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw[module] = exports
	// Conservative invalidation: any module's memoized map may chain
	// through this one, so drop everything memoized so far. Re-export
	// graphs are shallow in practice (spec's bounded depth), so this
	// is cheap relative to a full re-parse.
	r.memo = make(map[string]map[string]ExportBinding)
}

// Resolve returns the fully-resolved export map for module: exported
// name -> (originFile, originName, depth). Results are memoized.
func (r *ExportResolver) Resolve(module string) map[string]ExportBinding {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.memo[module]; ok {
		return cached
	}

	visiting := map[string]bool{module: true}
	result := r.resolveLocked(module, 0, visiting)
	r.memo[module] = result
	return result
}

func (r *ExportResolver) resolveLocked(module string, depth int, visiting map[string]bool) map[string]ExportBinding {
	out := make(map[string]ExportBinding)
	if depth >= r.maxDepth {
		return out
	}
	exports, ok := r.raw[module]
	if !ok {
		return out
	}

	for name, originFile := range exports.Direct {
		out[name] = ExportBinding{OriginFile: originFile, OriginName: name, Depth: depth}
	}

	for name, target := range exports.ReExportNamed {
		if visiting[target.Module] {
			continue // cyclic re-export chain, stop following
		}
		visiting[target.Module] = true
		chained := r.resolveLocked(target.Module, depth+1, visiting)
		delete(visiting, target.Module)

		if binding, ok := chained[target.OriginalName]; ok {
			binding.Depth = depth
			out[name] = binding
		} else {
			// The name was not found through the target module (it is
			// not registered, does not export the name, or the depth
			// bound was reached); record the target module and name as
			// given.
			out[name] = ExportBinding{OriginFile: target.Module, OriginName: target.OriginalName, Depth: depth}
		}
	}

	for _, src := range exports.ReExportAll {
		if visiting[src] {
			continue
		}
		visiting[src] = true
		chained := r.resolveLocked(src, depth+1, visiting)
		delete(visiting, src)
		for name, binding := range chained {
			if _, exists := out[name]; !exists {
				out[name] = binding
			}
		}
	}

	return out
}
