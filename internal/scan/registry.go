package scan

import (
	"path/filepath"
	"strings"

	"github.com/dusk-indust/repograph/internal/graph"
)

// langByExt maps file extensions to languages. Extensions outside this
// registry scan as graph.LangUnknown: the file is still indexed for lexical
// search, but no symbols are extracted from it.
var langByExt = map[string]graph.Lang{
	".go":  graph.LangGo,
	".py":  graph.LangPython,
	".pyi": graph.LangPython,
	".ts":  graph.LangTypeScript,
	".tsx": graph.LangTypeScript,
	".js":  graph.LangTypeScript,
	".jsx": graph.LangTypeScript,
	".rs":  graph.LangRust,
}

// DetectLang returns the language for a path based on its extension.
func DetectLang(path string) graph.Lang {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := langByExt[ext]; ok {
		return lang
	}
	return graph.LangUnknown
}
