package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Mode selects how a writer pass treats files absent from the batch.
type Mode string

const (
	// ModeFull replaces the repo's entire file/symbol set: anything the
	// batch does not mention is removed.
	ModeFull Mode = "full"
	// ModeIncremental applies a changed-path delta. Removals come from the
	// batch's Deleted list (diff-driven scans) or, for complete walks, from
	// the symmetric difference against the stored fingerprint snapshot.
	ModeIncremental Mode = "incremental"
)

// RawEdge is an unresolved relationship produced by extraction. It carries
// only a textual resolution key; cross-file resolution happens in the
// writer's second pass, once the node set is complete.
type RawEdge struct {
	Kind EdgeKind `json:"kind"`
	// SourceQN is the qualified name of the originating symbol. Empty means
	// the edge originates from the file itself (IMPORTS, USES).
	SourceQN  string `json:"sourceQn,omitempty"`
	TargetKey string `json:"targetKey"`
}

// FileUpdate bundles one file's extraction output for the writer.
type FileUpdate struct {
	File    FileNode
	Symbols []SymbolNode // IDs are assigned by the writer
	Raw     []RawEdge
}

// Batch is the unit of work for one writer pass over one repo.
type Batch struct {
	// Root is the repository root on disk, used for module-metadata lookups
	// during import resolution.
	Root string
	// Files holds the scanned (and possibly extracted) files. For partial
	// batches this covers only added/modified paths.
	Files []FileUpdate
	// Deleted lists removed paths, populated by diff-driven scans.
	Deleted []string
	// Partial marks a batch that does not enumerate the full tree, so
	// absence from Files must not be read as deletion.
	Partial bool
}

// ApplyResult reports what a writer pass actually did. Counts are returned
// even when the pass fails partway through.
type ApplyResult struct {
	FilesWritten   int          `json:"filesWritten"`
	FilesRemoved   int          `json:"filesRemoved"`
	SymbolsWritten int          `json:"symbolsWritten"`
	EdgesWritten   int          `json:"edgesWritten"`
	EdgesResolved  int          `json:"edgesResolved"`
	EdgesDropped   int          `json:"edgesDropped"`
	Diagnostics    []Diagnostic `json:"diagnostics,omitempty"`
}

// Writer merges scanned/extracted batches into a Store under idempotent
// upsert semantics. Callers must serialize Apply calls per repo; distinct
// repos may be written concurrently.
type Writer struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewWriter creates a Writer over the given store.
func NewWriter(store Store, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{store: store, log: log, now: time.Now}
}

// Apply runs the two-pass write: pass 1 upserts nodes and structural edges
// per file (each file atomically), pass 2 resolves raw edges against the
// completed node set and merges only the resolved ones. Unresolved edges
// are counted and dropped, never persisted as placeholders.
func (w *Writer) Apply(ctx context.Context, repoID string, mode Mode, batch Batch) (*ApplyResult, error) {
	res := &ApplyResult{}

	repo, err := w.store.GetRepo(ctx, repoID)
	if err != nil {
		return res, fmt.Errorf("get repo %s: %w", repoID, err)
	}
	if repo == nil {
		if err := w.store.UpsertRepo(ctx, RepoNode{ID: repoID, Active: true, CreatedAt: w.now()}); err != nil {
			return res, fmt.Errorf("create repo %s: %w", repoID, err)
		}
	}

	stored, err := w.store.ListFiles(ctx, repoID)
	if err != nil {
		return res, fmt.Errorf("snapshot repo %s: %w", repoID, err)
	}
	storedHash := make(map[string]string, len(stored))
	for _, f := range stored {
		storedHash[f.Path] = f.ContentHash
	}

	// Decide the change set against the fingerprint snapshot.
	batchPaths := make(map[string]bool, len(batch.Files))
	var changed []FileUpdate
	for _, fu := range batch.Files {
		batchPaths[fu.File.Path] = true
		if prev, ok := storedHash[fu.File.Path]; !ok || prev != fu.File.ContentHash {
			changed = append(changed, fu)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].File.Path < changed[j].File.Path })

	removed := batch.Deleted
	if mode == ModeFull || !batch.Partial {
		for path := range storedHash {
			if !batchPaths[path] {
				removed = append(removed, path)
			}
		}
	}
	sort.Strings(removed)

	// Edges pointing into symbols of rewritten files are preserved and
	// re-resolved after the rewrite; symbol IDs are deterministic, so an
	// unchanged signature re-links automatically.
	preserved, err := w.collectPreserved(ctx, repoID, changed, removed, storedHash)
	if err != nil {
		return res, err
	}

	for _, path := range removed {
		if err := w.store.DeleteFile(ctx, repoID, path); err != nil {
			return res, fmt.Errorf("delete file %s: %w", path, err)
		}
		res.FilesRemoved++
	}

	// Pass 1: nodes and structural edges, one atomic mutation per file.
	for i := range changed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fu := &changed[i]
		fu.File.RepoID = repoID
		fu.File.LastIngestedAt = w.now()
		w.assignSymbolIDs(repoID, fu, res)

		structural := []Edge{{SourceID: fu.File.ID(), TargetID: repoID, Kind: EdgeInRepo}}
		for _, sym := range fu.Symbols {
			structural = append(structural, Edge{SourceID: sym.ID, TargetID: fu.File.ID(), Kind: EdgeDefinedIn})
		}

		_, existed := storedHash[fu.File.Path]
		mut := FileMutation{
			RepoID:         repoID,
			Path:           fu.File.Path,
			RemoveExisting: existed,
			File:           fu.File,
			Symbols:        fu.Symbols,
			Edges:          structural,
		}
		if err := w.store.ApplyFileMutation(ctx, mut); err != nil {
			return res, fmt.Errorf("write file %s: %w", fu.File.Path, err)
		}
		res.FilesWritten++
		res.SymbolsWritten += len(fu.Symbols)
		res.EdgesWritten += len(structural)
	}

	// Pass 2: resolve raw edges against the now-complete node set.
	files, err := w.store.ListFiles(ctx, repoID)
	if err != nil {
		return res, fmt.Errorf("list files: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	symbols, err := w.store.ListSymbols(ctx, repoID)
	if err != nil {
		return res, fmt.Errorf("list symbols: %w", err)
	}
	resolver := NewImportResolver(batch.Root, paths)
	index := NewSymbolIndex(symbols)

	for i := range changed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.resolveFileEdges(ctx, repoID, &changed[i], resolver, index, res); err != nil {
			return res, err
		}
	}

	// Re-merge preserved incoming edges whose endpoints both survive.
	if len(preserved) > 0 {
		var relink []Edge
		for _, e := range preserved {
			ok, err := w.store.NodeExists(ctx, e.TargetID)
			if err != nil {
				return res, fmt.Errorf("check node %s: %w", e.TargetID, err)
			}
			if ok {
				relink = append(relink, e)
			} else {
				res.EdgesDropped++
			}
		}
		merged, err := w.store.MergeEdges(ctx, relink)
		if err != nil {
			return res, fmt.Errorf("relink preserved edges: %w", err)
		}
		res.EdgesWritten += merged
	}

	w.log.Debug("writer pass complete",
		"repo", repoID,
		"mode", string(mode),
		"filesWritten", res.FilesWritten,
		"filesRemoved", res.FilesRemoved,
		"edgesResolved", res.EdgesResolved,
		"edgesDropped", res.EdgesDropped,
	)
	return res, nil
}

// assignSymbolIDs fills in deterministic symbol IDs and drops duplicate
// qualified names, keeping the later declaration.
func (w *Writer) assignSymbolIDs(repoID string, fu *FileUpdate, res *ApplyResult) {
	seen := make(map[string]int, len(fu.Symbols))
	kept := fu.Symbols[:0]
	for _, sym := range fu.Symbols {
		sym.RepoID = repoID
		sym.FilePath = fu.File.Path
		sym.ID = SymbolID(repoID, fu.File.Path, sym.QualifiedName, sym.Kind)
		if idx, dup := seen[sym.ID]; dup {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Stage:   "write",
				Path:    fu.File.Path,
				Message: fmt.Sprintf("duplicate symbol %s: later declaration at line %d wins", sym.QualifiedName, sym.StartLine),
			})
			kept[idx] = sym
			continue
		}
		seen[sym.ID] = len(kept)
		kept = append(kept, sym)
	}
	fu.Symbols = kept
}

// resolveFileEdges resolves one file's raw edges and merges the resolved
// set atomically.
func (w *Writer) resolveFileEdges(ctx context.Context, repoID string, fu *FileUpdate, resolver *ImportResolver, index *SymbolIndex, res *ApplyResult) error {
	srcPath := fu.File.Path
	srcFileID := FileID(repoID, srcPath)
	symByQN := make(map[string]SymbolNode, len(fu.Symbols))
	for _, sym := range fu.Symbols {
		symByQN[sym.QualifiedName] = sym
	}

	// Imports first: they both produce IMPORTS edges and define the scope
	// for symbol resolution.
	var resolved []Edge
	var imports []string
	for _, raw := range fu.Raw {
		if raw.Kind != EdgeImports {
			continue
		}
		target, ok := resolver.Resolve(raw.TargetKey, srcPath, fu.File.Lang)
		if !ok {
			res.EdgesDropped++
			continue
		}
		res.EdgesResolved++
		imports = append(imports, target)
		resolved = append(resolved, Edge{SourceID: srcFileID, TargetID: FileID(repoID, target), Kind: EdgeImports})
	}
	sort.Strings(imports)

	for _, raw := range fu.Raw {
		switch raw.Kind {
		case EdgeImports:
			// handled above
		case EdgeCalls, EdgeUses, EdgeInherits, EdgeBelongsTo:
			var kinds []SymbolKind
			if raw.Kind == EdgeInherits || raw.Kind == EdgeBelongsTo {
				kinds = []SymbolKind{SymbolClass}
			}
			target, ok := index.Resolve(raw.TargetKey, srcPath, imports, kinds...)
			if !ok {
				res.EdgesDropped++
				continue
			}

			sourceID := srcFileID
			if raw.SourceQN != "" {
				src, ok := symByQN[raw.SourceQN]
				if !ok {
					res.EdgesDropped++
					continue
				}
				sourceID = src.ID
			}
			if sourceID == target.ID {
				res.EdgesDropped++ // self reference, not a dependency
				continue
			}
			res.EdgesResolved++
			resolved = append(resolved, Edge{SourceID: sourceID, TargetID: target.ID, Kind: raw.Kind})
		default:
			res.EdgesDropped++
		}
	}

	merged, err := w.store.MergeEdges(ctx, resolved)
	if err != nil {
		return fmt.Errorf("merge edges for %s: %w", srcPath, err)
	}
	res.EdgesWritten += merged
	return nil
}

// collectPreserved gathers CALLS/USES/INHERITS edges that point into the
// symbols of files about to be rewritten, excluding edges whose source is
// itself being rewritten or removed (those are re-extracted anyway).
func (w *Writer) collectPreserved(ctx context.Context, repoID string, changed []FileUpdate, removed []string, storedHash map[string]string) ([]Edge, error) {
	rewriting := make(map[string]bool, len(changed)+len(removed))
	var rewrittenExisting []string
	for _, fu := range changed {
		rewriting[fu.File.Path] = true
		if _, ok := storedHash[fu.File.Path]; ok {
			rewrittenExisting = append(rewrittenExisting, fu.File.Path)
		}
	}
	for _, path := range removed {
		rewriting[path] = true
	}
	if len(rewrittenExisting) == 0 {
		return nil, nil
	}

	symbols, err := w.store.ListSymbols(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	ownerByID := make(map[string]string, len(symbols))
	var oldIDs []string
	rewriteSet := make(map[string]bool, len(rewrittenExisting))
	for _, p := range rewrittenExisting {
		rewriteSet[p] = true
	}
	for _, sym := range symbols {
		ownerByID[sym.ID] = sym.FilePath
		if rewriteSet[sym.FilePath] {
			oldIDs = append(oldIDs, sym.ID)
		}
	}
	if len(oldIDs) == 0 {
		return nil, nil
	}

	incoming, err := w.store.IncomingEdges(ctx, oldIDs)
	if err != nil {
		return nil, fmt.Errorf("incoming edges: %w", err)
	}

	var preserved []Edge
	for _, e := range incoming {
		switch e.Kind {
		case EdgeCalls, EdgeUses, EdgeInherits:
		default:
			continue // ownership edges are rewritten with their file
		}
		sourcePath := ownerByID[e.SourceID]
		if sourcePath == "" {
			if _, p, ok := SplitFileID(e.SourceID); ok {
				sourcePath = p
			}
		}
		if sourcePath == "" || rewriting[sourcePath] {
			continue
		}
		preserved = append(preserved, e)
	}
	return preserved, nil
}
