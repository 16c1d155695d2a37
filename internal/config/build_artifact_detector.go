// Build-output detection for the ingestion exclusion set: parses a
// project's own build manifests (package.json, tsconfig.json,
// Cargo.toml, pyproject.toml) to find output directories a change
// event should never be ingested from, supplementing whatever
// Include/Exclude globs a .pipeline.kdl file already lists.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ExclusionDetector derives extra Exclude patterns for a project root
// by reading the build manifests it finds there.
type ExclusionDetector struct {
	root string
}

// NewBuildArtifactDetector scopes an ExclusionDetector to root.
func NewBuildArtifactDetector(root string) *ExclusionDetector {
	return &ExclusionDetector{root: root}
}

// DetectOutputDirectories returns glob patterns (e.g. "**/dist/**")
// for every build output directory it can infer from manifests
// present under the detector's root.
func (d *ExclusionDetector) DetectOutputDirectories() []string {
	var patterns []string
	patterns = append(patterns, d.jsOutputDirs()...)
	patterns = append(patterns, d.tomlOutputDir("Cargo.toml", "profile", "release", "target-dir")...)
	patterns = append(patterns, d.tomlOutputDir("pyproject.toml", "tool", "poetry", "target-dir")...)
	return patterns
}

// jsOutputDirs inspects package.json, tsconfig.json, and vite's config
// files for a configured output directory.
func (d *ExclusionDetector) jsOutputDirs() []string {
	var patterns []string

	if pkg, ok := d.readJSON("package.json"); ok {
		if scripts, ok := pkg["scripts"].(map[string]interface{}); ok {
			for _, script := range scripts {
				if s, ok := script.(string); ok {
					patterns = append(patterns, outDirFromScriptFlag(s)...)
				}
			}
		}
		if build, ok := pkg["build"].(map[string]interface{}); ok {
			if outDir, ok := build["outDir"].(string); ok {
				patterns = append(patterns, globFor(outDir))
			}
		}
	}

	if ts, ok := d.readJSON("tsconfig.json"); ok {
		if compilerOptions, ok := ts["compilerOptions"].(map[string]interface{}); ok {
			if outDir, ok := compilerOptions["outDir"].(string); ok {
				patterns = append(patterns, globFor(outDir))
			}
		}
	}

	for _, viteConfig := range []string{"vite.config.js", "vite.config.ts"} {
		if data, err := os.ReadFile(filepath.Join(d.root, viteConfig)); err == nil {
			if dir, ok := outDirFromViteConfig(string(data)); ok {
				patterns = append(patterns, globFor(dir))
			}
		}
	}

	return patterns
}

// tomlOutputDir looks up a nested string key inside a TOML manifest
// and, if present, returns it as an exclusion glob. Covers Cargo's
// [profile.release] target-dir and a [tool.poetry] target-dir in
// pyproject.toml, the only two teacher-observed TOML output-dir shapes.
func (d *ExclusionDetector) tomlOutputDir(manifest string, keys ...string) []string {
	data, err := os.ReadFile(filepath.Join(d.root, manifest))
	if err != nil {
		return nil
	}
	var doc map[string]interface{}
	if toml.Unmarshal(data, &doc) != nil {
		return nil
	}
	node := interface{}(doc)
	for _, key := range keys[:len(keys)-1] {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node, ok = m[key]
		if !ok {
			return nil
		}
	}
	m, ok := node.(map[string]interface{})
	if !ok {
		return nil
	}
	if dir, ok := m[keys[len(keys)-1]].(string); ok && dir != "" {
		return []string{globFor(dir)}
	}
	return nil
}

func (d *ExclusionDetector) readJSON(name string) (map[string]interface{}, bool) {
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		return nil, false
	}
	var doc map[string]interface{}
	if json.Unmarshal(data, &doc) != nil {
		return nil, false
	}
	return doc, true
}

func globFor(dir string) string {
	return "**/" + dir + "/**"
}

// outDirFromScriptFlag extracts a --outDir/-outDir command-line flag
// value from a package.json build script string.
func outDirFromScriptFlag(script string) []string {
	if !strings.Contains(script, "outDir") {
		return nil
	}
	var patterns []string
	parts := strings.Fields(script)
	for i, part := range parts {
		if (part == "--outDir" || part == "-outDir") && i+1 < len(parts) {
			patterns = append(patterns, globFor(strings.Trim(parts[i+1], "\"'")))
		}
	}
	return patterns
}

// outDirFromViteConfig extracts an outDir: 'x' / outDir: "x" literal
// from a vite config file's source text.
func outDirFromViteConfig(content string) (string, bool) {
	idx := strings.Index(content, "outDir")
	if idx == -1 {
		return "", false
	}
	rest := content[idx+len("outDir"):]
	colon := strings.Index(rest, ":")
	if colon == -1 {
		return "", false
	}
	rest = rest[colon+1:]
	for _, quote := range []string{"'", "\""} {
		parts := strings.SplitN(rest, quote, 3)
		if len(parts) >= 3 {
			if dir := strings.TrimSpace(parts[1]); dir != "" {
				return dir, true
			}
		}
	}
	return "", false
}

// DeduplicatePatterns drops repeated exclusion patterns, preserving
// first-seen order.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}
	return result
}
