//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph
// backend. It requires CGO because the go-kuzu driver wraps KuzuDB's C
// library. All writes for one repo arrive from a single writer (the
// ingestion layer serializes them), so a single connection suffices.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path, so the graph survives across sessions.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
// Primary keys give the uniqueness guarantees the data model needs:
// Repo.id, Symbol.id, and the composite (repoId, path) folded into File.id.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Repo(
		id STRING,
		active BOOLEAN,
		created_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS File(
		id STRING,
		repo_id STRING,
		path STRING,
		lang STRING,
		size_bytes INT64,
		content_hash STRING,
		excerpt STRING,
		last_ingested_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Symbol(
		id STRING,
		repo_id STRING,
		file_path STRING,
		name STRING,
		qualified_name STRING,
		kind STRING,
		visibility STRING,
		start_line INT64,
		end_line INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS IN_REPO(FROM File TO Repo)`,
	`CREATE REL TABLE IF NOT EXISTS DEFINED_IN(FROM Symbol TO File)`,
	`CREATE REL TABLE IF NOT EXISTS BELONGS_TO(FROM Symbol TO Symbol)`,
	`CREATE REL TABLE IF NOT EXISTS CALLS(FROM Symbol TO Symbol)`,
	`CREATE REL TABLE IF NOT EXISTS INHERITS(FROM Symbol TO Symbol)`,
	`CREATE REL TABLE IF NOT EXISTS IMPORTS(FROM File TO File)`,
	`CREATE REL TABLE IF NOT EXISTS USES(FROM File TO Symbol)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// UpsertRepo creates the repo node if absent; an existing repo keeps its
// created_at and only refreshes the active flag.
func (s *KuzuStore) UpsertRepo(_ context.Context, repo RepoNode) error {
	return s.exec(
		`MERGE (r:Repo {id: $id})
		 ON CREATE SET r.active = $active, r.created_at = $created
		 ON MATCH SET r.active = $active`,
		map[string]any{
			"id":      repo.ID,
			"active":  repo.Active,
			"created": repo.CreatedAt.UnixNano(),
		},
	)
}

// DeactivateRepo marks a repo inactive without erasing anything.
func (s *KuzuStore) DeactivateRepo(_ context.Context, repoID string) error {
	return s.exec(
		`MATCH (r:Repo {id: $id}) SET r.active = false`,
		map[string]any{"id": repoID},
	)
}

// ApplyFileMutation runs a file's delete-then-rewrite inside one KuzuDB
// transaction so observers never see a mixed old/new state.
func (s *KuzuStore) ApplyFileMutation(ctx context.Context, mut FileMutation) error {
	return s.inTx(func() error {
		if mut.RemoveExisting {
			if err := s.clearFile(mut.RepoID, mut.Path, false); err != nil {
				return err
			}
		}
		if err := s.upsertFile(mut.File); err != nil {
			return err
		}
		for _, sym := range mut.Symbols {
			if err := s.upsertSymbol(sym); err != nil {
				return err
			}
		}
		for _, e := range mut.Edges {
			if _, err := s.mergeEdge(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// MergeEdges merges a batch of edges inside one transaction.
func (s *KuzuStore) MergeEdges(_ context.Context, edges []Edge) (int, error) {
	merged := 0
	err := s.inTx(func() error {
		for _, e := range edges {
			n, err := s.mergeEdge(e)
			if err != nil {
				return err
			}
			merged += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return merged, nil
}

// DeleteFile removes the file node, its owned symbols, and every edge left
// dangling, inside one transaction.
func (s *KuzuStore) DeleteFile(_ context.Context, repoID, path string) error {
	return s.inTx(func() error {
		return s.clearFile(repoID, path, true)
	})
}

func (s *KuzuStore) upsertFile(f FileNode) error {
	return s.exec(
		`MERGE (f:File {id: $id})
		 SET f.repo_id = $repo,
		     f.path = $path,
		     f.lang = $lang,
		     f.size_bytes = $size,
		     f.content_hash = $hash,
		     f.excerpt = $excerpt,
		     f.last_ingested_at = $ingested`,
		map[string]any{
			"id":       f.ID(),
			"repo":     f.RepoID,
			"path":     f.Path,
			"lang":     string(f.Lang),
			"size":     f.SizeBytes,
			"hash":     f.ContentHash,
			"excerpt":  f.Excerpt,
			"ingested": f.LastIngestedAt.UnixNano(),
		},
	)
}

func (s *KuzuStore) upsertSymbol(sym SymbolNode) error {
	return s.exec(
		`MERGE (s:Symbol {id: $id})
		 SET s.repo_id = $repo,
		     s.file_path = $fp,
		     s.name = $name,
		     s.qualified_name = $qn,
		     s.kind = $kind,
		     s.visibility = $vis,
		     s.start_line = $sl,
		     s.end_line = $el`,
		map[string]any{
			"id":   sym.ID,
			"repo": sym.RepoID,
			"fp":   sym.FilePath,
			"name": sym.Name,
			"qn":   sym.QualifiedName,
			"kind": string(sym.Kind),
			"vis":  string(sym.Visibility),
			"sl":   int64(sym.StartLine),
			"el":   int64(sym.EndLine),
		},
	)
}

// edgeEndpoints maps each edge kind to its (source table, target table).
func edgeEndpoints(kind EdgeKind) (string, string, error) {
	switch kind {
	case EdgeInRepo:
		return "File", "Repo", nil
	case EdgeDefinedIn:
		return "Symbol", "File", nil
	case EdgeBelongsTo, EdgeCalls, EdgeInherits:
		return "Symbol", "Symbol", nil
	case EdgeImports:
		return "File", "File", nil
	case EdgeUses:
		return "File", "Symbol", nil
	default:
		return "", "", fmt.Errorf("kuzu: unsupported edge kind: %s", kind)
	}
}

// mergeEdge merges one edge, returning 1 when the edge was newly created.
func (s *KuzuStore) mergeEdge(e Edge) (int, error) {
	srcTable, dstTable, err := edgeEndpoints(e.Kind)
	if err != nil {
		return 0, err
	}
	existing, err := s.query(fmt.Sprintf(
		`MATCH (a:%s {id: $src})-[:%s]->(b:%s {id: $dst}) RETURN count(*)`,
		srcTable, e.Kind, dstTable,
	), map[string]any{"src": e.SourceID, "dst": e.TargetID})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 && toInt(existing[0][0]) > 0 {
		return 0, nil
	}
	err = s.exec(fmt.Sprintf(
		`MATCH (a:%s {id: $src}), (b:%s {id: $dst}) CREATE (a)-[:%s]->(b)`,
		srcTable, dstTable, e.Kind,
	), map[string]any{"src": e.SourceID, "dst": e.TargetID})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// clearFile deletes a file's symbols (DETACH removes their edges) and the
// file's own outgoing edges. When dropNode is true the file node and its
// incoming edges go as well.
func (s *KuzuStore) clearFile(repoID, path string, dropNode bool) error {
	if err := s.exec(
		`MATCH (sym:Symbol {repo_id: $repo, file_path: $path}) DETACH DELETE sym`,
		map[string]any{"repo": repoID, "path": path},
	); err != nil {
		return err
	}

	fileID := FileID(repoID, path)
	if dropNode {
		return s.exec(
			`MATCH (f:File {id: $id}) DETACH DELETE f`,
			map[string]any{"id": fileID},
		)
	}

	// Keep the node (it will be rewritten) but clear its outgoing edges;
	// incoming IMPORTS from other files stay valid.
	for _, rel := range []string{"IN_REPO", "IMPORTS", "USES"} {
		if err := s.exec(fmt.Sprintf(
			`MATCH (f:File {id: $id})-[r:%s]->() DELETE r`, rel,
		), map[string]any{"id": fileID}); err != nil {
			return err
		}
	}
	return nil
}

// ---------- Point reads ----------

func (s *KuzuStore) GetRepo(_ context.Context, repoID string) (*RepoNode, error) {
	rows, err := s.query(
		`MATCH (r:Repo {id: $id}) RETURN r.id, r.active, r.created_at`,
		map[string]any{"id": repoID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &RepoNode{
		ID:        toString(r[0]),
		Active:    toBool(r[1]),
		CreatedAt: time.Unix(0, int64(toInt(r[2]))),
	}, nil
}

func (s *KuzuStore) GetFile(_ context.Context, repoID, path string) (*FileNode, error) {
	rows, err := s.query(
		`MATCH (f:File {id: $id})
		 RETURN f.repo_id, f.path, f.lang, f.size_bytes, f.content_hash, f.excerpt, f.last_ingested_at`,
		map[string]any{"id": FileID(repoID, path)},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	f := rowToFile(rows[0])
	return &f, nil
}

func (s *KuzuStore) GetSymbol(_ context.Context, id string) (*SymbolNode, error) {
	rows, err := s.query(
		`MATCH (s:Symbol {id: $id}) RETURN `+symbolColumns,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sym := rowToSymbol(rows[0])
	return &sym, nil
}

// NodeExists reports whether id names a known File or Symbol node.
func (s *KuzuStore) NodeExists(_ context.Context, id string) (bool, error) {
	for _, table := range []string{"File", "Symbol"} {
		rows, err := s.query(fmt.Sprintf(
			`MATCH (n:%s {id: $id}) RETURN count(n)`, table,
		), map[string]any{"id": id})
		if err != nil {
			return false, err
		}
		if len(rows) > 0 && toInt(rows[0][0]) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ---------- Enumeration reads ----------

const symbolColumns = `s.id, s.repo_id, s.file_path, s.name, s.qualified_name, s.kind, s.visibility, s.start_line, s.end_line`

func (s *KuzuStore) ListFiles(_ context.Context, repoID string) ([]FileNode, error) {
	rows, err := s.query(
		`MATCH (f:File {repo_id: $repo})
		 RETURN f.repo_id, f.path, f.lang, f.size_bytes, f.content_hash, f.excerpt, f.last_ingested_at
		 ORDER BY f.path`,
		map[string]any{"repo": repoID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]FileNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToFile(r))
	}
	return out, nil
}

func (s *KuzuStore) ListSymbols(_ context.Context, repoID string) ([]SymbolNode, error) {
	rows, err := s.query(
		`MATCH (s:Symbol {repo_id: $repo}) RETURN `+symbolColumns+` ORDER BY s.qualified_name`,
		map[string]any{"repo": repoID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]SymbolNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToSymbol(r))
	}
	return out, nil
}

// ListEdges returns a repo's edges of one kind. Scoping rides on the source
// node's repo_id column (File and Symbol both carry one).
func (s *KuzuStore) ListEdges(_ context.Context, repoID string, kind EdgeKind) ([]Edge, error) {
	srcTable, dstTable, err := edgeEndpoints(kind)
	if err != nil {
		return nil, err
	}
	cypher := fmt.Sprintf(`MATCH (a:%s)-[:%s]->(b:%s)`, srcTable, kind, dstTable)
	params := map[string]any{}
	if repoID != "" && srcTable != "Repo" {
		cypher += ` WHERE a.repo_id = $repo`
		params["repo"] = repoID
	}
	cypher += ` RETURN a.id, b.id ORDER BY a.id, b.id`
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]Edge, 0, len(rows))
	for _, r := range rows {
		out = append(out, Edge{SourceID: toString(r[0]), TargetID: toString(r[1]), Kind: kind})
	}
	return out, nil
}

// ---------- Candidate retrieval ----------

// MatchFiles returns files whose path or excerpt contains term,
// case-insensitively, ordered by path.
func (s *KuzuStore) MatchFiles(_ context.Context, repoID, term string, limit int) ([]FileNode, error) {
	rows, err := s.query(
		`MATCH (f:File {repo_id: $repo})
		 WHERE lower(f.path) CONTAINS $term OR lower(f.excerpt) CONTAINS $term
		 RETURN f.repo_id, f.path, f.lang, f.size_bytes, f.content_hash, f.excerpt, f.last_ingested_at
		 ORDER BY f.path LIMIT $lim`,
		map[string]any{
			"repo": repoID,
			"term": strings.ToLower(term),
			"lim":  int64(limit),
		},
	)
	if err != nil {
		return nil, err
	}
	out := make([]FileNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToFile(r))
	}
	return out, nil
}

// MatchSymbols returns symbols whose name contains term, case-insensitively,
// ordered by qualified name.
func (s *KuzuStore) MatchSymbols(_ context.Context, repoID, term string, limit int) ([]SymbolNode, error) {
	rows, err := s.query(
		`MATCH (s:Symbol {repo_id: $repo})
		 WHERE lower(s.name) CONTAINS $term
		 RETURN `+symbolColumns+`
		 ORDER BY s.qualified_name LIMIT $lim`,
		map[string]any{
			"repo": repoID,
			"term": strings.ToLower(term),
			"lim":  int64(limit),
		},
	)
	if err != nil {
		return nil, err
	}
	out := make([]SymbolNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToSymbol(r))
	}
	return out, nil
}

// ---------- Traversal reads ----------

// IncomingEdges returns every edge targeting one of targetIDs.
func (s *KuzuStore) IncomingEdges(_ context.Context, targetIDs []string) ([]Edge, error) {
	var out []Edge
	for _, id := range targetIDs {
		for _, kind := range []EdgeKind{EdgeDefinedIn, EdgeBelongsTo, EdgeCalls, EdgeInherits, EdgeImports, EdgeUses, EdgeInRepo} {
			srcTable, dstTable, err := edgeEndpoints(kind)
			if err != nil {
				return nil, err
			}
			rows, err := s.query(fmt.Sprintf(
				`MATCH (a:%s)-[:%s]->(b:%s {id: $id}) RETURN a.id ORDER BY a.id`,
				srcTable, kind, dstTable,
			), map[string]any{"id": id})
			if err != nil {
				return nil, err
			}
			for _, r := range rows {
				out = append(out, Edge{SourceID: toString(r[0]), TargetID: id, Kind: kind})
			}
		}
	}
	return out, nil
}

// ReverseNeighbors returns the one-hop sources of edges pointing at nodeID
// for the given kinds.
func (s *KuzuStore) ReverseNeighbors(_ context.Context, nodeID string, kinds []EdgeKind) ([]Neighbor, error) {
	var out []Neighbor
	for _, kind := range kinds {
		srcTable, dstTable, err := edgeEndpoints(kind)
		if err != nil {
			return nil, err
		}
		rows, err := s.query(fmt.Sprintf(
			`MATCH (a:%s)-[:%s]->(b:%s {id: $id}) RETURN a.id ORDER BY a.id`,
			srcTable, kind, dstTable,
		), map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, Neighbor{NodeID: toString(r[0]), Kind: kind})
		}
	}
	return out, nil
}

// ---------- Stats ----------

// Stats returns node and edge counts, scoped to repoID unless it is empty.
func (s *KuzuStore) Stats(_ context.Context, repoID string) (*GraphStats, error) {
	stats := &GraphStats{}

	repoCount, err := s.count(`MATCH (r:Repo) RETURN count(r)`, nil)
	if err != nil {
		return nil, err
	}
	if repoID != "" {
		repoCount, err = s.count(`MATCH (r:Repo {id: $repo}) RETURN count(r)`, map[string]any{"repo": repoID})
		if err != nil {
			return nil, err
		}
	}
	stats.RepoCount = repoCount

	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"File", &stats.FileCount},
		{"Symbol", &stats.SymbolCount},
	} {
		cypher := fmt.Sprintf(`MATCH (n:%s) RETURN count(n)`, q.table)
		params := map[string]any{}
		if repoID != "" {
			cypher = fmt.Sprintf(`MATCH (n:%s {repo_id: $repo}) RETURN count(n)`, q.table)
			params["repo"] = repoID
		}
		n, err := s.count(cypher, params)
		if err != nil {
			return nil, err
		}
		*q.dst = n
	}

	for _, kind := range []EdgeKind{EdgeInRepo, EdgeDefinedIn, EdgeBelongsTo, EdgeCalls, EdgeInherits, EdgeImports, EdgeUses} {
		edges, err := s.ListEdges(context.Background(), repoID, kind)
		if err != nil {
			return nil, err
		}
		stats.EdgeCount += len(edges)
	}
	return stats, nil
}

// ---------- Internal helpers ----------

// inTx wraps fn in an explicit KuzuDB transaction, rolling back on error.
func (s *KuzuStore) inTx(fn func() error) error {
	if err := s.rawExec("BEGIN TRANSACTION"); err != nil {
		return err
	}
	if err := fn(); err != nil {
		_ = s.rawExec("ROLLBACK")
		return err
	}
	return s.rawExec("COMMIT")
}

func (s *KuzuStore) rawExec(cypher string) error {
	res, err := s.conn.Query(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: %s: %w", strings.ToLower(cypher), err)
	}
	res.Close()
	return nil
}

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func (s *KuzuStore) count(cypher string, params map[string]any) (int, error) {
	rows, err := s.query(cypher, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToFile converts a 7-column result row into a FileNode.
// Column order: repo_id, path, lang, size_bytes, content_hash, excerpt, last_ingested_at.
func rowToFile(r []any) FileNode {
	return FileNode{
		RepoID:         toString(r[0]),
		Path:           toString(r[1]),
		Lang:           Lang(toString(r[2])),
		SizeBytes:      int64(toInt(r[3])),
		ContentHash:    toString(r[4]),
		Excerpt:        toString(r[5]),
		LastIngestedAt: time.Unix(0, int64(toInt(r[6]))),
	}
}

// rowToSymbol converts a symbolColumns result row into a SymbolNode.
func rowToSymbol(r []any) SymbolNode {
	return SymbolNode{
		ID:            toString(r[0]),
		RepoID:        toString(r[1]),
		FilePath:      toString(r[2]),
		Name:          toString(r[3]),
		QualifiedName: toString(r[4]),
		Kind:          SymbolKind(toString(r[5])),
		Visibility:    Visibility(toString(r[6])),
		StartLine:     toInt(r[7]),
		EndLine:       toInt(r[8]),
	}
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).
// These helpers safely coerce any -> concrete type.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
