package object

import (
	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
)

// StagedFile is the part of an index entry that ends up in a tree.
type StagedFile struct {
	Path     string
	BlobHash string
}

// AssembleTree builds a sealed, flat tree with one regular-file entry per
// staged path. The input order does not affect the result.
func AssembleTree(h hasher.Hasher, files []StagedFile) (*Tree, error) {
	const op = "assemble tree"

	seen := make(map[string]struct{}, len(files))
	t := &Tree{Entries: make([]TreeEntry, 0, len(files))}
	for _, f := range files {
		if _, dup := seen[f.Path]; dup {
			return nil, errors.Validation(op, "path %q staged twice", f.Path)
		}
		seen[f.Path] = struct{}{}

		e := TreeEntry{
			Mode: ModeFile,
			Kind: KindBlob,
			Hash: f.BlobHash,
			Name: f.Path,
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, e)
	}
	t.Seal(h)
	return t, nil
}
