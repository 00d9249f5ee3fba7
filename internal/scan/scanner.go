package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/dusk-indust/repograph/internal/graph"
)

// DefaultExcludes are directory patterns skipped on every scan unless the
// caller overrides Exclude entirely.
var DefaultExcludes = []string{
	".git/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
	".venv/",
	"venv/",
	".idea/",
	".vscode/",
}

// DefaultMaxFileSizeBytes is the content ceiling: larger files are indexed
// by metadata and hash only, never read whole into memory.
const DefaultMaxFileSizeBytes int64 = 1 << 20

// FileRecord is one scanned file. Content is nil for oversized files; their
// ContentHash is still computed, streaming, so incremental diffing works.
type FileRecord struct {
	Path        string // repo-relative, slash-separated
	AbsPath     string
	Lang        graph.Lang
	SizeBytes   int64
	ContentHash string
	Content     []byte
	Oversized   bool
}

// Options controls a scan. Include and Exclude use gitignore pattern
// syntax; an empty Include matches every file.
type Options struct {
	Include          []string
	Exclude          []string
	MaxFileSizeBytes int64
}

// Scanner walks a repository root and emits FileRecords for the files that
// pass the include/exclude filters. Unreadable entries are recorded as
// warnings, not errors: one bad file never aborts a scan.
type Scanner struct {
	root    string
	include *ignore.GitIgnore
	exclude *ignore.GitIgnore
	maxSize int64

	mu       sync.Mutex
	warnings []graph.Diagnostic
}

// New builds a Scanner for root. root must exist and be a directory.
func New(root string, opts Options) (*Scanner, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s: not a directory", root)
	}

	excludes := opts.Exclude
	if excludes == nil {
		excludes = DefaultExcludes
	}
	maxSize := opts.MaxFileSizeBytes
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSizeBytes
	}

	s := &Scanner{
		root:    root,
		exclude: ignore.CompileIgnoreLines(excludes...),
		maxSize: maxSize,
	}
	if len(opts.Include) > 0 {
		s.include = ignore.CompileIgnoreLines(opts.Include...)
	}
	return s, nil
}

// Scan walks the tree and streams records over the returned channel. The
// channel closes when the walk finishes or ctx is cancelled; call Warnings
// afterwards for the non-fatal problems encountered.
func (s *Scanner) Scan(ctx context.Context) <-chan FileRecord {
	out := make(chan FileRecord, 64)

	go func() {
		defer close(out)

		filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				s.warn(relOrSelf(s.root, path), fmt.Sprintf("walk: %v", err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			rel, relErr := filepath.Rel(s.root, path)
			if relErr != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if s.exclude.MatchesPath(rel + "/") {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if s.exclude.MatchesPath(rel) {
				return nil
			}
			if s.include != nil && !s.include.MatchesPath(rel) {
				return nil
			}

			rec, ok := s.readFile(path, rel)
			if !ok {
				return nil
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}()

	return out
}

// readFile loads a file into a record. Oversized files get a streamed hash
// and nil content.
func (s *Scanner) readFile(absPath, rel string) (FileRecord, bool) {
	info, err := os.Stat(absPath)
	if err != nil {
		s.warn(rel, fmt.Sprintf("stat: %v", err))
		return FileRecord{}, false
	}

	rec := FileRecord{
		Path:      rel,
		AbsPath:   absPath,
		Lang:      DetectLang(rel),
		SizeBytes: info.Size(),
	}

	if info.Size() > s.maxSize {
		hash, err := hashFile(absPath)
		if err != nil {
			s.warn(rel, fmt.Sprintf("hash: %v", err))
			return FileRecord{}, false
		}
		rec.ContentHash = hash
		rec.Oversized = true
		s.warn(rel, fmt.Sprintf("file exceeds size ceiling (%d > %d bytes), indexed by metadata only", info.Size(), s.maxSize))
		return rec, true
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		s.warn(rel, fmt.Sprintf("read: %v", err))
		return FileRecord{}, false
	}
	sum := sha256.Sum256(content)
	rec.Content = content
	rec.ContentHash = hex.EncodeToString(sum[:])
	return rec, true
}

// Warnings returns the diagnostics accumulated by the last Scan. Valid once
// the record channel has closed.
func (s *Scanner) Warnings() []graph.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]graph.Diagnostic, len(s.warnings))
	copy(out, s.warnings)
	return out
}

func (s *Scanner) warn(path, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, graph.Diagnostic{Stage: "scan", Path: path, Message: msg})
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func relOrSelf(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
