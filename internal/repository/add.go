package repository

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/ignore"
	"github.com/Sqizeeeeee/lab7-part2/internal/index"
	"github.com/Sqizeeeeee/lab7-part2/internal/object"
)

// relPath maps p, absolute or relative to the repository root, to a clean
// slash-separated path inside the working tree.
func (r *Repository) relPath(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, p)
	}
	rel, err := filepath.Rel(r.root, filepath.Clean(abs))
	if err != nil {
		return "", errors.Validation("path", "%s is outside the repository", p)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.Validation("path", "%s is outside the repository", p)
	}
	return rel, nil
}

func (r *Repository) inRepoDir(rel string) bool {
	return rel == DirName || strings.HasPrefix(rel, DirName+"/")
}

// expand turns the requested paths into the sorted set of regular files to
// stage. Directories are walked with the ignore rules applied; files named
// explicitly are taken as given. The ignore file is re-read on every call.
func (r *Repository) expand(paths []string) ([]string, error) {
	matcher, err := ignore.Load(r.root, DirName)
	if err != nil {
		return nil, fmt.Errorf("loading ignore rules: %w", err)
	}
	seen := make(map[string]struct{})

	for _, p := range paths {
		rel, err := r.relPath(p)
		if err != nil {
			return nil, err
		}
		if r.inRepoDir(rel) {
			return nil, errors.Validation("add", "refusing to stage repository internals: %s", rel)
		}

		abs := filepath.Join(r.root, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NotFound("add", "pathspec %q did not match any files", p)
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				return nil, errors.Validation("add", "%s is not a regular file", rel)
			}
			seen[rel] = struct{}{}
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			walkRel, err := r.relPath(path)
			if err != nil {
				return err
			}
			if matcher.Ignored(walkRel, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			seen[walkRel] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}

	files := make([]string, 0, len(seen))
	for rel := range seen {
		if strings.IndexFunc(rel, unicode.IsSpace) >= 0 {
			return nil, errors.Validation("add", "path %q contains whitespace", rel)
		}
		files = append(files, rel)
	}
	sort.Strings(files)
	return files, nil
}

// Add stores the current contents of paths as blobs and stages them. Files
// are read and stored concurrently; staging happens afterwards in path order.
func (r *Repository) Add(ctx context.Context, paths []string) ([]index.Entry, error) {
	files, err := r.expand(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	p := pool.NewWithResults[object.StagedFile]().
		WithMaxGoroutines(r.cfg.Workers).
		WithContext(ctx).
		WithCancelOnError()

	for _, rel := range files {
		rel := rel // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loop semantics)
		p.Go(func(ctx context.Context) (object.StagedFile, error) {
			if err := ctx.Err(); err != nil {
				return object.StagedFile{}, err
			}
			content, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(rel)))
			if err != nil {
				return object.StagedFile{}, fmt.Errorf("reading %s: %w", rel, err)
			}
			hash, err := r.store.PutBlob(object.NewBlob(r.hasher, content, rel))
			if err != nil {
				return object.StagedFile{}, fmt.Errorf("storing %s: %w", rel, err)
			}
			return object.StagedFile{Path: rel, BlobHash: hash}, nil
		})
	}

	stored, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Path < stored[j].Path })

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]index.Entry, 0, len(stored))
	for _, f := range stored {
		entry, err := r.index.Stage(f.Path, f.BlobHash)
		if err != nil {
			return entries, fmt.Errorf("staging %s: %w", f.Path, err)
		}
		r.logger.Debug("added", zap.String("path", f.Path), zap.String("hash", f.BlobHash))
		entries = append(entries, entry)
	}

	r.logger.Info("staged files", zap.Int("count", len(entries)))
	return entries, nil
}

// Unstage removes paths from the index. A directory unstages everything
// staged beneath it. The removed paths are returned in sorted order.
func (r *Repository) Unstage(paths []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, p := range paths {
		rel, err := r.relPath(p)
		if err != nil {
			return removed, err
		}

		targets := []string{rel}
		if rel == "." {
			targets = r.index.StagedPaths()
		} else if !r.index.Contains(rel) {
			targets = targets[:0]
			for _, staged := range r.index.StagedPaths() {
				if strings.HasPrefix(staged, rel+"/") {
					targets = append(targets, staged)
				}
			}
		}

		for _, t := range targets {
			ok, err := r.index.Unstage(t)
			if err != nil {
				return removed, err
			}
			if ok {
				removed = append(removed, t)
			}
		}
	}

	sort.Strings(removed)
	return removed, nil
}
