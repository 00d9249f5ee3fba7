package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repograph/internal/graph"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func collect(t *testing.T, s *Scanner) map[string]FileRecord {
	t.Helper()
	out := map[string]FileRecord{}
	for rec := range s.Scan(context.Background()) {
		out[rec.Path] = rec
	}
	return out
}

func TestScanner_WalksAndDetectsLanguages(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py":           "def f():\n    pass\n",
		"src/main.go":    "package main\n",
		"web/app.tsx":    "export {}\n",
		"README.md":      "# readme\n",
		"core/lib.rs":    "fn main() {}\n",
	})

	s, err := New(root, Options{})
	require.NoError(t, err)
	got := collect(t, s)

	require.Len(t, got, 5)
	assert.Equal(t, graph.LangPython, got["a.py"].Lang)
	assert.Equal(t, graph.LangGo, got["src/main.go"].Lang)
	assert.Equal(t, graph.LangTypeScript, got["web/app.tsx"].Lang)
	assert.Equal(t, graph.LangRust, got["core/lib.rs"].Lang)
	assert.Equal(t, graph.LangUnknown, got["README.md"].Lang)

	rec := got["a.py"]
	assert.Equal(t, int64(len(rec.Content)), rec.SizeBytes)
	assert.Len(t, rec.ContentHash, 64, "sha256 hex")
	assert.Empty(t, s.Warnings())
}

func TestScanner_DefaultExcludes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py":                     "x = 1\n",
		"node_modules/dep/x.js":    "module.exports = {}\n",
		".git/config":              "[core]\n",
		"vendor/lib/lib.go":        "package lib\n",
		"__pycache__/a.cpython.py": "\n",
	})

	s, err := New(root, Options{})
	require.NoError(t, err)
	got := collect(t, s)

	require.Len(t, got, 1)
	_, ok := got["a.py"]
	assert.True(t, ok)
}

func TestScanner_IncludeAndExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.py":      "x = 1\n",
		"src/a_test.py": "x = 1\n",
		"docs/b.py":     "x = 1\n",
	})

	s, err := New(root, Options{
		Include: []string{"src/"},
		Exclude: []string{"*_test.py"},
	})
	require.NoError(t, err)
	got := collect(t, s)

	require.Len(t, got, 1)
	_, ok := got["src/a.py"]
	assert.True(t, ok)
}

func TestScanner_OversizedFile_MetadataOnly(t *testing.T) {
	root := t.TempDir()
	big := strings.Repeat("x", 256)
	writeTree(t, root, map[string]string{
		"big.py":   big,
		"small.py": "x = 1\n",
	})

	s, err := New(root, Options{MaxFileSizeBytes: 100})
	require.NoError(t, err)
	got := collect(t, s)

	require.Len(t, got, 2)
	rec := got["big.py"]
	assert.True(t, rec.Oversized)
	assert.Nil(t, rec.Content)
	assert.Len(t, rec.ContentHash, 64, "oversized files still get a streamed hash")
	assert.Equal(t, int64(256), rec.SizeBytes)

	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "scan", warnings[0].Stage)
	assert.Equal(t, "big.py", warnings[0].Path)

	small := got["small.py"]
	assert.False(t, small.Oversized)
	assert.NotNil(t, small.Content)
}

func TestScanner_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestDetectLang(t *testing.T) {
	tests := []struct {
		path string
		want graph.Lang
	}{
		{"x.go", graph.LangGo},
		{"x.py", graph.LangPython},
		{"x.pyi", graph.LangPython},
		{"x.ts", graph.LangTypeScript},
		{"x.jsx", graph.LangTypeScript},
		{"x.rs", graph.LangRust},
		{"x.PY", graph.LangPython},
		{"Makefile", graph.LangUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLang(tt.path), tt.path)
	}
}
