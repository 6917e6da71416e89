// internal/index/index.go
package index

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/fsutil"
	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
)

// Entry associates a working-tree path with the blob staged for it.
type Entry struct {
	Path     string `json:"path"`
	BlobHash string `json:"blob_hash"`
	StagedAt int64  `json:"staged_at"` // unix seconds
}

// Index is the set of changes pending the next commit. Every mutation is
// written through to the index file before it returns.
type Index struct {
	path    string
	entries map[string]Entry
	skipped []error
	mu      sync.RWMutex
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Index)

func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// WithClock overrides the source of staging timestamps.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) { ix.now = now }
}

// Load reads the index file at path. A missing file is an empty index.
// Malformed lines are skipped and reported through Skipped.
func Load(path string, opts ...Option) (*Index, error) {
	ix := &Index{
		path:    path,
		entries: make(map[string]Entry),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ix, nil
		}
		return nil, errors.StorageIO("load index", err)
	}

	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		entry, err := parseLine(i+1, line)
		if err != nil {
			ix.logger.Warn("skipping malformed index line",
				zap.String("index", path),
				zap.Int("line", i+1),
				zap.Error(err),
			)
			ix.skipped = append(ix.skipped, err)
			continue
		}
		ix.entries[entry.Path] = entry
	}

	ix.logger.Debug("loaded index", zap.String("index", path), zap.Int("count", len(ix.entries)))
	return ix, nil
}

func parseLine(lineNo int, line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Entry{}, errors.IndexCorruptLine(lineNo, "expected 3 fields, got %d", len(fields))
	}
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Entry{}, errors.IndexCorruptLine(lineNo, "bad timestamp %q", fields[2])
	}
	if !hasher.Valid(fields[1]) {
		return Entry{}, errors.IndexCorruptLine(lineNo, "bad blob hash %q", fields[1])
	}
	return Entry{Path: fields[0], BlobHash: fields[1], StagedAt: ts}, nil
}

// Skipped returns the errors for lines dropped during Load.
func (ix *Index) Skipped() []error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]error(nil), ix.skipped...)
}

func validatePath(path string) error {
	if path == "" {
		return errors.Validation("stage", "path cannot be empty")
	}
	// Load splits fields on unicode.IsSpace
	if strings.IndexFunc(path, unicode.IsSpace) >= 0 {
		return errors.Validation("stage", "path %q contains whitespace", path)
	}
	return nil
}

// Stage records blobHash as the pending content of path, replacing any
// earlier entry for the same path.
func (ix *Index) Stage(path, blobHash string) (Entry, error) {
	if err := validatePath(path); err != nil {
		return Entry{}, err
	}
	if !hasher.Valid(blobHash) {
		return Entry{}, errors.Validation("stage", "invalid blob hash %q for %s", blobHash, path)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	prev, existed := ix.entries[path]
	entry := Entry{Path: path, BlobHash: blobHash, StagedAt: ix.now().Unix()}
	ix.entries[path] = entry

	if err := ix.persistLocked(); err != nil {
		if existed {
			ix.entries[path] = prev
		} else {
			delete(ix.entries, path)
		}
		return Entry{}, err
	}

	ix.logger.Debug("staged", zap.String("path", path), zap.String("hash", blobHash))
	return entry, nil
}

// Unstage removes path from the index. It reports whether an entry existed.
func (ix *Index) Unstage(path string) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	prev, ok := ix.entries[path]
	if !ok {
		return false, nil
	}
	delete(ix.entries, path)

	if err := ix.persistLocked(); err != nil {
		ix.entries[path] = prev
		return false, err
	}

	ix.logger.Debug("unstaged", zap.String("path", path))
	return true, nil
}

func (ix *Index) Contains(path string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.entries[path]
	return ok
}

func (ix *Index) Get(path string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[path]
	return e, ok
}

// StagedPaths returns the staged paths in sorted order.
func (ix *Index) StagedPaths() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	paths := make([]string, 0, len(ix.entries))
	for p := range ix.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns a snapshot of all entries sorted by path.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.sortedLocked()
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func (ix *Index) IsEmpty() bool {
	return ix.Len() == 0
}

// Clear drops every entry and removes the index file.
func (ix *Index) Clear() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := os.Remove(ix.path); err != nil && !os.IsNotExist(err) {
		return errors.StorageIO("clear index", err)
	}
	ix.entries = make(map[string]Entry)

	ix.logger.Debug("cleared index", zap.String("index", ix.path))
	return nil
}

func (ix *Index) sortedLocked() []Entry {
	out := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (ix *Index) persistLocked() error {
	var buf bytes.Buffer
	for _, e := range ix.sortedLocked() {
		fmt.Fprintf(&buf, "%s %s %d\n", e.Path, e.BlobHash, e.StagedAt)
	}
	if err := fsutil.WriteFileAtomic(ix.path, buf.Bytes(), 0644); err != nil {
		return errors.StorageIO("persist index", err)
	}
	return nil
}
