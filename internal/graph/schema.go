package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// --- Enums ---

// Lang identifies a programming language for parsing. Files with extensions
// outside the registry carry LangUnknown and are indexed as opaque text.
type Lang string

const (
	LangGo         Lang = "go"
	LangPython     Lang = "python"
	LangTypeScript Lang = "typescript"
	LangRust       Lang = "rust"
	LangUnknown    Lang = "unknown"
)

// SupportedLangs are the languages with full symbol extraction support.
var SupportedLangs = []Lang{LangGo, LangPython, LangTypeScript, LangRust}

// SymbolKind classifies symbols in the code graph. A method is a function
// owned by a class; it additionally carries a BELONGS_TO edge.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolClass    SymbolKind = "class"
	SymbolMethod   SymbolKind = "method"
)

// Visibility marks whether a symbol is part of a file's public surface.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// EdgeKind classifies relationships between nodes. Edges are existence-only
// facts: merging the same edge twice nets zero changes.
type EdgeKind string

const (
	EdgeInRepo    EdgeKind = "IN_REPO"    // File -> Repo
	EdgeDefinedIn EdgeKind = "DEFINED_IN" // Symbol -> File
	EdgeBelongsTo EdgeKind = "BELONGS_TO" // method Symbol -> class Symbol
	EdgeCalls     EdgeKind = "CALLS"      // Symbol -> Symbol
	EdgeInherits  EdgeKind = "INHERITS"   // class Symbol -> class Symbol
	EdgeImports   EdgeKind = "IMPORTS"    // File -> File
	EdgeUses      EdgeKind = "USES"       // File -> Symbol
)

// ImpactEdgeKinds are the edge kinds traversed (in reverse) by impact
// analysis, in descending weight order.
var ImpactEdgeKinds = []EdgeKind{EdgeCalls, EdgeImports, EdgeUses}

// --- Models ---

// RepoNode is the root scope for File and Symbol entities. Repos are retired
// by deactivation, never erased.
type RepoNode struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// FileNode represents one source file within a repo. The same path may exist
// in different repos independently; (RepoID, Path) is the composite key.
type FileNode struct {
	RepoID         string    `json:"repoId"`
	Path           string    `json:"path"` // repo-relative, slash-separated
	Lang           Lang      `json:"lang"`
	SizeBytes      int64     `json:"sizeBytes"`
	ContentHash    string    `json:"contentHash"`
	Excerpt        string    `json:"excerpt,omitempty"` // leading slice of content, for lexical matching
	LastIngestedAt time.Time `json:"lastIngestedAt"`
}

// ID returns the file's graph node identifier.
func (f FileNode) ID() string {
	return FileID(f.RepoID, f.Path)
}

// SymbolNode represents a named declaration (function, class/type, method).
// Every symbol is owned by exactly one file via DEFINED_IN.
type SymbolNode struct {
	ID            string     `json:"id"`
	RepoID        string     `json:"repoId"`
	FilePath      string     `json:"filePath"`
	Name          string     `json:"name"`
	QualifiedName string     `json:"qualifiedName"` // <path>::<enclosingClass?>::<name>
	Kind          SymbolKind `json:"kind"`
	Visibility    Visibility `json:"visibility"`
	StartLine     int        `json:"startLine"`
	EndLine       int        `json:"endLine"`
}

// Edge is a directed relationship between two nodes, identified by their
// graph node IDs.
type Edge struct {
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
	Kind     EdgeKind `json:"kind"`
}

// Key returns a string uniquely identifying the edge, used for merge
// deduplication in the in-memory store.
func (e Edge) Key() string {
	return string(e.Kind) + "\x00" + e.SourceID + "\x00" + e.TargetID
}

// Neighbor is one hop of a traversal: the adjacent node and the edge kind
// that connects it.
type Neighbor struct {
	NodeID string   `json:"nodeId"`
	Kind   EdgeKind `json:"kind"`
}

// GraphStats summarizes the node and edge population of one repo (or of the
// whole store when the repo filter is empty).
type GraphStats struct {
	RepoCount   int `json:"repoCount"`
	FileCount   int `json:"fileCount"`
	SymbolCount int `json:"symbolCount"`
	EdgeCount   int `json:"edgeCount"`
}

// Diagnostic records a recovered, non-fatal problem during ingestion:
// an unreadable file, a parse failure, a dropped duplicate symbol.
type Diagnostic struct {
	Stage   string `json:"stage"` // "scan", "extract", "write"
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// --- Identifiers ---

// fileIDSep separates repo from path inside a file node ID. The unit
// separator cannot appear in repo IDs or paths and survives the cgo string
// boundary, unlike NUL.
const fileIDSep = "\x1f"

// FileID builds the graph node identifier for a file.
func FileID(repoID, path string) string {
	return repoID + fileIDSep + path
}

// SplitFileID is the inverse of FileID. ok is false when id is not a file
// node identifier.
func SplitFileID(id string) (repoID, path string, ok bool) {
	repoID, path, ok = strings.Cut(id, fileIDSep)
	return
}

// SymbolID builds the deterministic symbol identifier: a sha256 over repo,
// owning path, qualified name and kind. Re-extracting an unchanged
// declaration always yields the same ID.
func SymbolID(repoID, path, qualifiedName string, kind SymbolKind) string {
	h := sha256.Sum256([]byte(repoID + "\x00" + path + "\x00" + qualifiedName + "\x00" + string(kind)))
	return hex.EncodeToString(h[:])
}

// QualifiedName builds the canonical qualified name for a symbol.
// enclosingClass is empty for top-level declarations.
func QualifiedName(path, enclosingClass, name string) string {
	if enclosingClass == "" {
		return path + "::" + name
	}
	return path + "::" + enclosingClass + "::" + name
}
