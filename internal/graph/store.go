package graph

import (
	"context"
	"io"
)

// Store is the interface for the code graph backend.
// Implementations: KuzuStore (production), MemStore (testing and fallback).
//
// Write methods use keyed-merge semantics: upserting an existing node or
// merging an existing edge nets zero changes. ApplyFileMutation and
// MergeEdges are atomic per call, which is what makes a single file's
// delete-then-rewrite invisible to concurrent readers.
type Store interface {
	io.Closer

	// Schema setup. Called once before any data is inserted; idempotent.
	InitSchema(ctx context.Context) error

	// Write operations.
	UpsertRepo(ctx context.Context, repo RepoNode) error
	DeactivateRepo(ctx context.Context, repoID string) error
	ApplyFileMutation(ctx context.Context, mut FileMutation) error
	MergeEdges(ctx context.Context, edges []Edge) (merged int, err error)
	DeleteFile(ctx context.Context, repoID, path string) error

	// Point reads.
	GetRepo(ctx context.Context, repoID string) (*RepoNode, error)
	GetFile(ctx context.Context, repoID, path string) (*FileNode, error)
	GetSymbol(ctx context.Context, id string) (*SymbolNode, error)
	NodeExists(ctx context.Context, id string) (bool, error)

	// Enumeration reads. ListFiles doubles as the fingerprint snapshot for
	// incremental diffing: (path, contentHash) pairs live on File nodes, so
	// no process-global state survives between ingestion runs.
	ListFiles(ctx context.Context, repoID string) ([]FileNode, error)
	ListSymbols(ctx context.Context, repoID string) ([]SymbolNode, error)
	ListEdges(ctx context.Context, repoID string, kind EdgeKind) ([]Edge, error)

	// Candidate retrieval for ranking. term is matched case-insensitively
	// against File.path/File.excerpt and Symbol.name respectively.
	MatchFiles(ctx context.Context, repoID, term string, limit int) ([]FileNode, error)
	MatchSymbols(ctx context.Context, repoID, term string, limit int) ([]SymbolNode, error)

	// Traversal reads.
	IncomingEdges(ctx context.Context, targetIDs []string) ([]Edge, error)
	ReverseNeighbors(ctx context.Context, nodeID string, kinds []EdgeKind) ([]Neighbor, error)

	// Stats.
	Stats(ctx context.Context, repoID string) (*GraphStats, error)
}

// FileMutation is the atomic unit of pass-1 writing: optionally clear a
// file's previous symbols (delete-then-rewrite), then write the file node,
// its symbols, and its structural edges (IN_REPO, DEFINED_IN, BELONGS_TO)
// in one logical transaction.
type FileMutation struct {
	RepoID string
	Path   string

	// RemoveExisting deletes the file's current symbols and every edge
	// touching them before the rewrite. Edges into those symbols from other
	// files are re-resolved by the writer afterwards.
	RemoveExisting bool

	File    FileNode
	Symbols []SymbolNode
	Edges   []Edge
}
