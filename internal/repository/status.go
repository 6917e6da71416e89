package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sqizeeeeee/lab7-part2/internal/object"
)

type FileState string

const (
	StateStaged   FileState = "staged"
	StateModified FileState = "modified" // working file differs from the staged blob
	StateDeleted  FileState = "deleted"  // working file is gone
)

type StatusEntry struct {
	Path     string    `json:"path"`
	BlobHash string    `json:"blob_hash"`
	StagedAt int64     `json:"staged_at"`
	State    FileState `json:"state"`
}

type Status struct {
	Head   string        `json:"head,omitempty"`
	Staged []StatusEntry `json:"staged"`
}

// Status reports HEAD and every staged entry, comparing each against the
// current working file.
func (r *Repository) Status() (*Status, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}

	st := &Status{Head: head}
	for _, e := range r.index.Entries() {
		state := StateStaged

		content, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(e.Path)))
		switch {
		case os.IsNotExist(err):
			state = StateDeleted
		case err != nil:
			return nil, fmt.Errorf("reading %s: %w", e.Path, err)
		case object.NewBlob(r.hasher, content, e.Path).Hash != e.BlobHash:
			state = StateModified
		}

		st.Staged = append(st.Staged, StatusEntry{
			Path:     e.Path,
			BlobHash: e.BlobHash,
			StagedAt: e.StagedAt,
			State:    state,
		})
	}
	return st, nil
}
