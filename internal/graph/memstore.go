package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex;
// each write method holds the lock for its whole duration, which gives the
// per-call atomicity the Store contract requires.
type MemStore struct {
	mu      sync.RWMutex
	repos   map[string]RepoNode
	files   map[string]FileNode   // key: FileID(repoID, path)
	symbols map[string]SymbolNode // key: SymbolNode.ID
	edges   map[string]Edge       // key: Edge.Key()
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		repos:   make(map[string]RepoNode),
		files:   make(map[string]FileNode),
		symbols: make(map[string]SymbolNode),
		edges:   make(map[string]Edge),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// --- Write operations ---

// UpsertRepo creates the repo if absent. Existing repos keep their
// CreatedAt; the Active flag is refreshed.
func (m *MemStore) UpsertRepo(_ context.Context, repo RepoNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.repos[repo.ID]; ok {
		existing.Active = repo.Active
		m.repos[repo.ID] = existing
		return nil
	}
	m.repos[repo.ID] = repo
	return nil
}

// DeactivateRepo marks a repo inactive. The repo node and its graph are
// retained.
func (m *MemStore) DeactivateRepo(_ context.Context, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if repo, ok := m.repos[repoID]; ok {
		repo.Active = false
		m.repos[repoID] = repo
	}
	return nil
}

// ApplyFileMutation performs a file's pass-1 write under one lock hold.
func (m *MemStore) ApplyFileMutation(_ context.Context, mut FileMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mut.RemoveExisting {
		m.clearFileLocked(mut.RepoID, mut.Path, false)
	}

	m.files[mut.File.ID()] = mut.File
	for _, sym := range mut.Symbols {
		m.symbols[sym.ID] = sym
	}
	for _, e := range mut.Edges {
		m.edges[e.Key()] = e
	}
	return nil
}

// MergeEdges merges a batch of edges atomically, returning how many were
// actually new.
func (m *MemStore) MergeEdges(_ context.Context, edges []Edge) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := 0
	for _, e := range edges {
		key := e.Key()
		if _, ok := m.edges[key]; !ok {
			m.edges[key] = e
			merged++
		}
	}
	return merged, nil
}

// DeleteFile removes a file node, its owned symbols, and every edge left
// with a missing endpoint.
func (m *MemStore) DeleteFile(_ context.Context, repoID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearFileLocked(repoID, path, true)
	return nil
}

// clearFileLocked deletes a file's symbols and the edges that touch them,
// plus all edges originating from the file itself. When dropNode is true
// the file node goes too, along with edges targeting it.
func (m *MemStore) clearFileLocked(repoID, path string, dropNode bool) {
	fileID := FileID(repoID, path)

	doomed := map[string]bool{}
	for id, sym := range m.symbols {
		if sym.RepoID == repoID && sym.FilePath == path {
			doomed[id] = true
			delete(m.symbols, id)
		}
	}

	for key, e := range m.edges {
		if e.SourceID == fileID || doomed[e.SourceID] || doomed[e.TargetID] {
			delete(m.edges, key)
			continue
		}
		if dropNode && e.TargetID == fileID {
			delete(m.edges, key)
		}
	}

	if dropNode {
		delete(m.files, fileID)
	}
}

// --- Point reads ---

func (m *MemStore) GetRepo(_ context.Context, repoID string) (*RepoNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.repos[repoID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemStore) GetFile(_ context.Context, repoID, path string) (*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[FileID(repoID, path)]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (m *MemStore) GetSymbol(_ context.Context, id string) (*SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.symbols[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// NodeExists reports whether id names a known file or symbol node.
func (m *MemStore) NodeExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[id]; ok {
		return true, nil
	}
	_, ok := m.symbols[id]
	return ok, nil
}

// --- Enumeration reads ---

// ListFiles returns the repo's files sorted by path.
func (m *MemStore) ListFiles(_ context.Context, repoID string) ([]FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []FileNode
	for _, f := range m.files {
		if f.RepoID == repoID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ListSymbols returns the repo's symbols sorted by qualified name.
func (m *MemStore) ListSymbols(_ context.Context, repoID string) ([]SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SymbolNode
	for _, s := range m.symbols {
		if s.RepoID == repoID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out, nil
}

// ListEdges returns the repo's edges of one kind, sorted for determinism.
// An edge belongs to a repo when its source node does.
func (m *MemStore) ListEdges(_ context.Context, repoID string, kind EdgeKind) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Edge
	for _, e := range m.edges {
		if e.Kind != kind {
			continue
		}
		if repoID == "" || m.nodeInRepoLocked(e.SourceID, repoID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (m *MemStore) nodeInRepoLocked(id, repoID string) bool {
	if f, ok := m.files[id]; ok {
		return f.RepoID == repoID
	}
	if s, ok := m.symbols[id]; ok {
		return s.RepoID == repoID
	}
	return false
}

// --- Candidate retrieval ---

// MatchFiles returns files whose path or excerpt contains term
// (case-insensitive), sorted by path, up to limit.
func (m *MemStore) MatchFiles(_ context.Context, repoID, term string, limit int) ([]FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lower := strings.ToLower(term)
	var out []FileNode
	for _, f := range m.files {
		if f.RepoID != repoID {
			continue
		}
		if strings.Contains(strings.ToLower(f.Path), lower) ||
			strings.Contains(strings.ToLower(f.Excerpt), lower) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MatchSymbols returns symbols whose name contains term (case-insensitive),
// sorted by qualified name, up to limit.
func (m *MemStore) MatchSymbols(_ context.Context, repoID, term string, limit int) ([]SymbolNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lower := strings.ToLower(term)
	var out []SymbolNode
	for _, s := range m.symbols {
		if s.RepoID != repoID {
			continue
		}
		if strings.Contains(strings.ToLower(s.Name), lower) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Traversal reads ---

// IncomingEdges returns every edge whose target is one of targetIDs.
func (m *MemStore) IncomingEdges(_ context.Context, targetIDs []string) ([]Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	targets := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		targets[id] = true
	}
	var out []Edge
	for _, e := range m.edges {
		if targets[e.TargetID] {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// ReverseNeighbors returns the sources of edges pointing at nodeID whose
// kind is in kinds, sorted for determinism.
func (m *MemStore) ReverseNeighbors(_ context.Context, nodeID string, kinds []EdgeKind) ([]Neighbor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}
	var out []Neighbor
	for _, e := range m.edges {
		if e.TargetID == nodeID && wanted[e.Kind] {
			out = append(out, Neighbor{NodeID: e.SourceID, Kind: e.Kind})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// --- Stats ---

// Stats returns node and edge counts, scoped to repoID unless it is empty.
func (m *MemStore) Stats(_ context.Context, repoID string) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &GraphStats{}
	if repoID == "" {
		stats.RepoCount = len(m.repos)
		stats.FileCount = len(m.files)
		stats.SymbolCount = len(m.symbols)
		stats.EdgeCount = len(m.edges)
		return stats, nil
	}

	if _, ok := m.repos[repoID]; ok {
		stats.RepoCount = 1
	}
	for _, f := range m.files {
		if f.RepoID == repoID {
			stats.FileCount++
		}
	}
	for _, s := range m.symbols {
		if s.RepoID == repoID {
			stats.SymbolCount++
		}
	}
	for _, e := range m.edges {
		if m.nodeInRepoLocked(e.SourceID, repoID) {
			stats.EdgeCount++
		}
	}
	return stats, nil
}
