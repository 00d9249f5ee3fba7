package graph

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImportResolver rewrites raw import specifiers (as extracted from source)
// into repo-relative file paths matching FileNode.Path values. It is built
// once per writer pass from the now-complete set of file paths plus any
// module metadata found in the repository root. Specifiers that point at
// the standard library or third-party packages do not resolve; the writer
// counts and drops those edges.
type ImportResolver struct {
	repoRoot   string
	fileSet    map[string]bool
	dirIndex   map[string][]string
	goModule   string
	pkgByName  map[string]string // npm package name -> main file, repo-relative
	workspaces map[string]string // npm package name -> package dir
}

// NewImportResolver builds an ImportResolver from the repository root on
// disk and the set of known repo-relative file paths.
func NewImportResolver(repoRoot string, knownFiles []string) *ImportResolver {
	r := &ImportResolver{
		repoRoot:   repoRoot,
		fileSet:    make(map[string]bool, len(knownFiles)),
		dirIndex:   make(map[string][]string),
		pkgByName:  make(map[string]string),
		workspaces: make(map[string]string),
	}
	for _, f := range knownFiles {
		r.fileSet[f] = true
		dir := filepath.Dir(f)
		r.dirIndex[dir] = append(r.dirIndex[dir], f)
	}
	r.readGoModule()
	r.readNPMWorkspaces()
	return r
}

// Resolve maps a raw import specifier to a repo-relative file path.
// sourcePath is the importing file; lang selects the resolution rules.
func (r *ImportResolver) Resolve(spec, sourcePath string, lang Lang) (string, bool) {
	switch lang {
	case LangGo:
		return r.resolveGo(spec)
	case LangPython:
		return r.resolvePython(spec, sourcePath)
	case LangTypeScript:
		return r.resolveTS(spec, sourcePath)
	case LangRust:
		return r.resolveRust(spec, sourcePath)
	default:
		return "", false
	}
}

// --- Go ---

func (r *ImportResolver) resolveGo(spec string) (string, bool) {
	if r.goModule == "" || !strings.HasPrefix(spec, r.goModule) {
		return "", false // stdlib or external module
	}
	relDir := strings.TrimPrefix(strings.TrimPrefix(spec, r.goModule), "/")
	files := append([]string(nil), r.dirIndex[relDir]...)
	sort.Strings(files)
	for _, f := range files {
		if strings.HasSuffix(f, ".go") && !strings.HasSuffix(f, "_test.go") {
			return f, true
		}
	}
	return "", false
}

// --- Python ---

func (r *ImportResolver) resolvePython(spec, sourcePath string) (string, bool) {
	dots := 0
	for _, c := range spec {
		if c != '.' {
			break
		}
		dots++
	}
	module := spec[dots:]

	if dots > 0 {
		// Relative import: one dot is the current package, each extra dot
		// climbs one directory.
		base := filepath.Dir(sourcePath)
		for i := 1; i < dots; i++ {
			base = filepath.Dir(base)
		}
		if module == "" {
			return r.probe(filepath.Join(base, "__init__"), []string{".py"})
		}
		rel := strings.ReplaceAll(module, ".", "/")
		return r.probe(filepath.Join(base, rel), []string{".py", "/__init__.py"})
	}

	// Absolute import: try it as a repo-rooted module path before treating
	// it as external.
	rel := strings.ReplaceAll(module, ".", "/")
	if p, ok := r.probe(rel, []string{".py", "/__init__.py"}); ok {
		return p, true
	}
	// Also try relative to the importing file's directory (flat layouts
	// import siblings without a package prefix).
	return r.probe(filepath.Join(filepath.Dir(sourcePath), rel), []string{".py", "/__init__.py"})
}

// --- TypeScript ---

var tsExtensions = []string{".ts", ".tsx", ".js", ".jsx", "/index.ts", "/index.tsx", "/index.js"}

func (r *ImportResolver) resolveTS(spec, sourcePath string) (string, bool) {
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		base := filepath.Clean(filepath.Join(filepath.Dir(sourcePath), spec))
		return r.probe(base, tsExtensions)
	}

	// Workspace package import: exact package name, or package + subpath.
	if main, ok := r.pkgByName[spec]; ok {
		return main, true
	}
	for name, dir := range r.workspaces {
		if strings.HasPrefix(spec, name+"/") {
			sub := strings.TrimPrefix(spec, name+"/")
			if p, ok := r.probe(filepath.Join(dir, sub), tsExtensions); ok {
				return p, true
			}
			// src-layout packages export subpaths from the directory of
			// their main entry, not the package root.
			if main, ok := r.pkgByName[name]; ok {
				if p, ok := r.probe(filepath.Join(filepath.Dir(main), sub), tsExtensions); ok {
					return p, true
				}
			}
			return r.probe(filepath.Join(dir, "src", sub), tsExtensions)
		}
	}
	return "", false
}

// --- Rust ---

func (r *ImportResolver) resolveRust(spec, sourcePath string) (string, bool) {
	// Strip use-list braces: "crate::model::{A, B}" -> "crate::model".
	if idx := strings.Index(spec, "::{"); idx != -1 {
		spec = spec[:idx]
	}
	rsExts := []string{".rs", "/mod.rs"}

	switch {
	case strings.HasPrefix(spec, "crate::"):
		rel := strings.ReplaceAll(strings.TrimPrefix(spec, "crate::"), "::", "/")
		for _, base := range []string{filepath.Join("src", rel), rel, filepath.Join(rustCrateRoot(sourcePath), rel)} {
			if p, ok := r.probe(base, rsExts); ok {
				return p, true
			}
		}
		return "", false
	case strings.HasPrefix(spec, "self::"):
		rel := strings.ReplaceAll(strings.TrimPrefix(spec, "self::"), "::", "/")
		return r.probe(filepath.Join(filepath.Dir(sourcePath), rel), rsExts)
	case strings.HasPrefix(spec, "super::"):
		rel := strings.ReplaceAll(strings.TrimPrefix(spec, "super::"), "::", "/")
		return r.probe(filepath.Join(filepath.Dir(filepath.Dir(sourcePath)), rel), rsExts)
	default:
		return "", false // external crate
	}
}

// rustCrateRoot walks up from a file path to the nearest "src" directory.
func rustCrateRoot(path string) string {
	dir := filepath.Dir(path)
	for dir != "." && dir != "/" && dir != "" {
		if filepath.Base(dir) == "src" {
			return dir
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

// --- Shared helpers ---

// probe checks base (with each extension appended) against the known file
// set. No filesystem I/O.
func (r *ImportResolver) probe(base string, extensions []string) (string, bool) {
	if r.fileSet[base] {
		return base, true
	}
	for _, ext := range extensions {
		if candidate := base + ext; r.fileSet[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// readGoModule pulls the module path out of go.mod, if present.
func (r *ImportResolver) readGoModule() {
	f, err := os.Open(filepath.Join(r.repoRoot, "go.mod"))
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "module ") {
			r.goModule = strings.TrimSpace(strings.TrimPrefix(line, "module"))
			return
		}
	}
}

// npmPackage is the subset of package.json the resolver cares about.
type npmPackage struct {
	Name       string          `json:"name"`
	Main       string          `json:"main"`
	Workspaces json.RawMessage `json:"workspaces"`
}

// readNPMWorkspaces indexes workspace packages declared in the root
// package.json so bare package imports can resolve within the repo.
func (r *ImportResolver) readNPMWorkspaces() {
	data, err := os.ReadFile(filepath.Join(r.repoRoot, "package.json"))
	if err != nil {
		return
	}
	var root npmPackage
	if err := json.Unmarshal(data, &root); err != nil {
		return
	}

	var patterns []string
	if len(root.Workspaces) > 0 {
		if err := json.Unmarshal(root.Workspaces, &patterns); err != nil {
			var obj struct {
				Packages []string `json:"packages"`
			}
			if json.Unmarshal(root.Workspaces, &obj) == nil {
				patterns = obj.Packages
			}
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(r.repoRoot, pattern))
		if err != nil {
			continue
		}
		for _, dir := range matches {
			r.indexNPMPackage(dir)
		}
	}
}

func (r *ImportResolver) indexNPMPackage(absDir string) {
	data, err := os.ReadFile(filepath.Join(absDir, "package.json"))
	if err != nil {
		return
	}
	var pkg npmPackage
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" {
		return
	}
	relDir, err := filepath.Rel(r.repoRoot, absDir)
	if err != nil {
		return
	}

	r.workspaces[pkg.Name] = relDir

	if pkg.Main != "" {
		if p, ok := r.probe(filepath.Clean(filepath.Join(relDir, pkg.Main)), tsExtensions); ok {
			r.pkgByName[pkg.Name] = p
			return
		}
	}
	for _, try := range []string{filepath.Join(relDir, "src", "index"), filepath.Join(relDir, "index")} {
		if p, ok := r.probe(try, tsExtensions); ok {
			r.pkgByName[pkg.Name] = p
			return
		}
	}
}
