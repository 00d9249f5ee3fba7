// Package ingest orchestrates the scan, extract, write pipeline that turns
// a repository on disk into its code graph.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/repograph/internal/extract"
	"github.com/dusk-indust/repograph/internal/graph"
	"github.com/dusk-indust/repograph/internal/scan"
)

const (
	// DefaultWorkers is the extraction fan-out width.
	DefaultWorkers = 8
	// DefaultParseTimeout bounds a single file's extraction.
	DefaultParseTimeout = 10 * time.Second
	// excerptBytes is how much leading content is stored on the file node
	// for lexical matching.
	excerptBytes = 512
)

// Options configures an Ingestor.
type Options struct {
	Workers      int
	ParseTimeout time.Duration
}

// Request describes one ingestion run.
type Request struct {
	RepoID string
	Root   string
	Mode   graph.Mode
	// SinceRef, when set, restricts the run to paths git reports as changed
	// since that ref. Implies incremental mode.
	SinceRef string
	Scan     scan.Options
}

// Result reports what an ingestion run did.
type Result struct {
	RunID        string             `json:"runId"`
	RepoID       string             `json:"repoId"`
	Mode         graph.Mode         `json:"mode"`
	FilesScanned int                `json:"filesScanned"`
	FilesFailed  int                `json:"filesFailed"`
	Apply        *graph.ApplyResult `json:"apply"`
	Diagnostics  []graph.Diagnostic `json:"diagnostics,omitempty"`
	Duration     time.Duration      `json:"duration"`
}

// Ingestor runs ingestion pipelines against one Store. Runs for the same
// repo are serialized; distinct repos proceed concurrently.
type Ingestor struct {
	store     graph.Store
	extractor *extract.Extractor
	writer    *graph.Writer
	log       *slog.Logger

	workers      int
	parseTimeout time.Duration

	mu        sync.Mutex
	repoLocks map[string]*sync.Mutex
}

// New creates an Ingestor over store.
func New(store graph.Store, log *slog.Logger, opts Options) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := opts.ParseTimeout
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}
	return &Ingestor{
		store:        store,
		extractor:    extract.New(),
		writer:       graph.NewWriter(store, log),
		log:          log,
		workers:      workers,
		parseTimeout: timeout,
		repoLocks:    map[string]*sync.Mutex{},
	}
}

// Close releases extractor resources.
func (ing *Ingestor) Close() error {
	return ing.extractor.Close()
}

// Ingest runs one scan-extract-write pass. It returns a Result even on
// partial failure so callers can see how far the run got.
func (ing *Ingestor) Ingest(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.RepoID == "" {
		return nil, graph.Preconditionf("repoId is required")
	}
	if req.Root == "" {
		return nil, graph.Preconditionf("root is required")
	}
	mode := req.Mode
	if mode == "" {
		mode = graph.ModeFull
	}
	if req.SinceRef != "" {
		mode = graph.ModeIncremental
	}

	res := &Result{
		RunID:  uuid.NewString(),
		RepoID: req.RepoID,
		Mode:   mode,
	}
	log := ing.log.With("run", res.RunID, "repo", req.RepoID, "mode", string(mode))
	log.Info("ingestion started", "root", req.Root)

	scanner, err := scan.New(req.Root, req.Scan)
	if err != nil {
		return nil, graph.Preconditionf("%v", err)
	}

	// One writer per repo at a time. Readers are never blocked; store-level
	// atomicity keeps them consistent mid-run.
	lock := ing.repoLock(req.RepoID)
	lock.Lock()
	defer lock.Unlock()

	batch := graph.Batch{Root: req.Root}
	var changedSet map[string]bool
	if req.SinceRef != "" {
		changes, err := scan.GitChanges(ctx, req.Root, req.SinceRef)
		if err != nil {
			return nil, graph.Preconditionf("%v", err)
		}
		changedSet = make(map[string]bool, len(changes.Added)+len(changes.Modified))
		for _, p := range changes.Paths() {
			changedSet[p] = true
		}
		batch.Deleted = changes.Deleted
		batch.Partial = true
	}

	files, diags, err := ing.extractAll(ctx, scanner, changedSet)
	if err != nil {
		return res, err
	}
	batch.Files = files
	res.FilesScanned = len(files)
	res.Diagnostics = append(res.Diagnostics, scanner.Warnings()...)
	res.Diagnostics = append(res.Diagnostics, diags...)
	for _, d := range diags {
		if d.Stage == "extract" {
			res.FilesFailed++
		}
	}

	apply, err := ing.writer.Apply(ctx, req.RepoID, mode, batch)
	res.Apply = apply
	if apply != nil {
		res.Diagnostics = append(res.Diagnostics, apply.Diagnostics...)
	}
	res.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, err
		}
		return res, &graph.StoreWriteError{Err: err}
	}

	log.Info("ingestion finished",
		"files", res.FilesScanned,
		"failed", res.FilesFailed,
		"symbols", apply.SymbolsWritten,
		"edgesResolved", apply.EdgesResolved,
		"edgesDropped", apply.EdgesDropped,
		"duration", res.Duration,
	)
	return res, nil
}

// extractAll drains the scanner and extracts symbols from each supported
// file with a bounded worker pool. A parse failure demotes the file to
// metadata-only indexing; it never fails the run.
func (ing *Ingestor) extractAll(ctx context.Context, scanner *scan.Scanner, changedSet map[string]bool) ([]graph.FileUpdate, []graph.Diagnostic, error) {
	var (
		mu    sync.Mutex
		files []graph.FileUpdate
		diags []graph.Diagnostic
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.workers)

	for rec := range scanner.Scan(gctx) {
		if changedSet != nil && !changedSet[rec.Path] {
			continue
		}
		g.Go(func() error {
			update, diag := ing.extractOne(gctx, rec)
			mu.Lock()
			defer mu.Unlock()
			files = append(files, update)
			if diag != nil {
				diags = append(diags, *diag)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return files, diags, nil
}

// extractOne builds the FileUpdate for a single scanned record.
func (ing *Ingestor) extractOne(ctx context.Context, rec scan.FileRecord) (graph.FileUpdate, *graph.Diagnostic) {
	update := graph.FileUpdate{
		File: graph.FileNode{
			Path:        rec.Path,
			Lang:        rec.Lang,
			SizeBytes:   rec.SizeBytes,
			ContentHash: rec.ContentHash,
			Excerpt:     excerpt(rec.Content),
		},
	}
	if rec.Oversized || !ing.extractor.Supported(rec.Lang) {
		return update, nil
	}

	pctx, cancel := context.WithTimeout(ctx, ing.parseTimeout)
	defer cancel()

	result, err := ing.extractor.Extract(pctx, rec.Path, rec.Content, rec.Lang)
	if err != nil {
		return update, &graph.Diagnostic{
			Stage:   "extract",
			Path:    rec.Path,
			Message: fmt.Sprintf("parse failed, indexed without symbols: %v", err),
		}
	}
	update.Symbols = result.Symbols
	update.Raw = result.Raw
	return update, nil
}

func (ing *Ingestor) repoLock(repoID string) *sync.Mutex {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	lock, ok := ing.repoLocks[repoID]
	if !ok {
		lock = &sync.Mutex{}
		ing.repoLocks[repoID] = lock
	}
	return lock
}

func excerpt(content []byte) string {
	if len(content) > excerptBytes {
		content = content[:excerptBytes]
	}
	return string(content)
}
