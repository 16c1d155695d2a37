package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/Amicidal/codegraph-ingest/internal/graph"
)

// basePriority is the starting priority for any incoming change event
// (spec §4.9).
const basePriority = 5

// smallFileThresholdBytes is the size below which a file earns the
// "small file" priority bump (spec §4.9).
const smallFileThresholdBytes = 10 * 1024

// sourceExtensions earns the source-code bump (spec §4.9: "+2 for
// source-code file extensions"). This is a fixed list of its own and
// differs from C2's language registry: it omits .mjs, .php and .zig
// and includes .rb, .c, .h, .cpp and .hpp, which C2 does not parse.
var sourceExtensions = map[string]bool{
	".go":   true,
	".ts":   true,
	".tsx":  true,
	".js":   true,
	".jsx":  true,
	".py":   true,
	".java": true,
	".rb":   true,
	".rs":   true,
	".c":    true,
	".h":    true,
	".cpp":  true,
	".hpp":  true,
	".cs":   true,
}

// assignPriority implements spec §4.9's priority rule: base 5, +2 for
// source-code file extensions, +1 for small files (<10 KB), +1 for
// modify vs create events, capped at 10 via graph.ClampPriority.
func assignPriority(event graph.ChangeEvent) int {
	p := basePriority

	ext := strings.ToLower(filepath.Ext(event.FilePath))
	if sourceExtensions[ext] {
		p += 2
	}
	if event.Size > 0 && event.Size < smallFileThresholdBytes {
		p++
	}
	if event.EventType == graph.EventModified {
		p++
	}

	return graph.ClampPriority(p)
}
