package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amicidal/codegraph-ingest/internal/cache"
	"github.com/Amicidal/codegraph-ingest/internal/resolve"
)

const sampleGoSource = `package sample

// Greet returns a friendly greeting.
func Greet(name string) string {
	return compute(name)
}

func compute(name string) string {
	return "hello " + name
}
`

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParser_FullParseThenCacheHit(t *testing.T) {
	dir := t.TempDir()
	abs := writeTempFile(t, dir, "sample.go", sampleGoSource)

	p := NewParser(DefaultConfig())
	fc := cache.NewFileCache()
	idx := cache.NewSymbolIndex()
	budget := resolve.NewBudget(resolve.DefaultCap)

	res, err := p.ParseFile(dir, abs, fc, idx, budget)
	require.NoError(t, err)
	assert.False(t, res.IsIncremental)
	assert.NotEmpty(t, res.AddedEntities)

	var sawGreet, sawCompute bool
	for _, e := range res.AddedEntities {
		if e.Symbol == nil {
			continue
		}
		switch e.Symbol.Name {
		case "Greet":
			sawGreet = true
			assert.Contains(t, e.Symbol.DocString, "friendly greeting")
		case "compute":
			sawCompute = true
		}
	}
	assert.True(t, sawGreet)
	assert.True(t, sawCompute)

	// Re-parsing unchanged content is an O(1) cache hit.
	res2, err := p.ParseFile(dir, abs, fc, idx, budget)
	require.NoError(t, err)
	assert.True(t, res2.IsIncremental)
	assert.Empty(t, res2.AddedEntities)
	assert.Empty(t, res2.RemovedEntities)
}

func TestParser_IncrementalUpdateDetectsChangedSignature(t *testing.T) {
	dir := t.TempDir()
	abs := writeTempFile(t, dir, "sample.go", sampleGoSource)

	p := NewParser(DefaultConfig())
	fc := cache.NewFileCache()
	idx := cache.NewSymbolIndex()
	budget := resolve.NewBudget(resolve.DefaultCap)

	_, err := p.ParseFile(dir, abs, fc, idx, budget)
	require.NoError(t, err)

	updated := `package sample

func Greet(name string, loud bool) string {
	return compute(name)
}

func compute(name string) string {
	return "hello " + name
}
`
	writeTempFile(t, dir, "sample.go", updated)

	res, err := p.ParseFile(dir, abs, fc, idx, budget)
	require.NoError(t, err)
	assert.True(t, res.IsIncremental)

	var sawUpdatedGreet bool
	for _, e := range res.UpdatedEntities {
		if e.Symbol != nil && e.Symbol.Name == "Greet" {
			sawUpdatedGreet = true
		}
	}
	assert.True(t, sawUpdatedGreet)
}

func TestParser_DeletionYieldsRemovedEntities(t *testing.T) {
	dir := t.TempDir()
	abs := writeTempFile(t, dir, "sample.go", sampleGoSource)

	p := NewParser(DefaultConfig())
	fc := cache.NewFileCache()
	idx := cache.NewSymbolIndex()
	budget := resolve.NewBudget(resolve.DefaultCap)

	_, err := p.ParseFile(dir, abs, fc, idx, budget)
	require.NoError(t, err)

	require.NoError(t, os.Remove(abs))

	res, err := p.ParseFile(dir, abs, fc, idx, budget)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RemovedEntities)
	assert.Nil(t, fc.Get(abs))
}

func TestParser_UnknownExtensionYieldsWarning(t *testing.T) {
	dir := t.TempDir()
	abs := writeTempFile(t, dir, "notes.txt", "just some notes")

	p := NewParser(DefaultConfig())
	fc := cache.NewFileCache()
	idx := cache.NewSymbolIndex()

	res, err := p.ParseFile(dir, abs, fc, idx, resolve.NewBudget(resolve.DefaultCap))
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "warning", res.Errors[0].Severity)
}
