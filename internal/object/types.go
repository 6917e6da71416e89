// internal/object/types.go
package object

import (
	"fmt"
	"strings"

	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
)

// Kind identifies what an object is. It is also the tag hashed in front of
// the payload, so two objects of different kinds never share a hash.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// Tree entry modes.
const (
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeDir        = "40000"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindBlob, KindTree, KindCommit:
		return k, nil
	}
	return "", fmt.Errorf("unknown object kind %q", s)
}

func (k Kind) String() string { return string(k) }

// Object is anything the store can persist.
type Object interface {
	Kind() Kind
	// ID is the object's hash, empty until the object is sealed or stored.
	ID() string
	// Payload is the canonical serialization, without the kind tag.
	Payload() []byte
}

// Blob is raw file content. Path records where the content was read from and
// is never part of the blob's identity.
type Blob struct {
	Hash    string
	Content []byte
	Path    string
}

// NewBlob builds a sealed blob. Nil content is treated as an empty file.
func NewBlob(h hasher.Hasher, content []byte, path string) *Blob {
	if content == nil {
		content = []byte{}
	}
	b := &Blob{Content: content, Path: path}
	b.Hash = h.Digest(string(KindBlob), b.Content)
	return b
}

func (b *Blob) Kind() Kind      { return KindBlob }
func (b *Blob) ID() string      { return b.Hash }
func (b *Blob) Payload() []byte { return b.Content }

// TreeEntry is one named reference inside a tree.
type TreeEntry struct {
	Mode string
	Kind Kind
	Hash string
	Name string
}

// Tree is a flat listing of entries. A sealed tree keeps Entries in
// canonical order.
type Tree struct {
	Hash    string
	Entries []TreeEntry
}

func (t *Tree) Kind() Kind { return KindTree }
func (t *Tree) ID() string { return t.Hash }

// Commit is a snapshot: a tree, its parents, and who made it when.
type Commit struct {
	Hash      string
	TreeHash  string
	Parents   []string
	Author    string
	Message   string
	Timestamp int64
}

func (c *Commit) Kind() Kind { return KindCommit }
func (c *Commit) ID() string { return c.Hash }

// IsRoot reports whether the commit has no parents.
func (c *Commit) IsRoot() bool { return len(c.Parents) == 0 }

// Validate checks that the entry can be serialized on a single line and
// parsed back unchanged.
func (e TreeEntry) Validate() error {
	const op = "tree entry"
	switch {
	case e.Name == "":
		return errors.Validation(op, "empty name")
	case strings.ContainsAny(e.Name, "\n\r"):
		return errors.Validation(op, "name %q contains a newline", e.Name)
	case e.Mode == "" || strings.ContainsAny(e.Mode, " \t\n"):
		return errors.Validation(op, "invalid mode %q for %s", e.Mode, e.Name)
	case e.Kind != KindBlob && e.Kind != KindTree:
		return errors.Validation(op, "invalid kind %q for %s", e.Kind, e.Name)
	case !hasher.Valid(e.Hash):
		return errors.Validation(op, "invalid hash %q for %s", e.Hash, e.Name)
	}
	return nil
}

func (t *Tree) Validate() error {
	for _, e := range t.Entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Commit) Validate() error {
	const op = "commit"
	if !hasher.Valid(c.TreeHash) {
		return errors.Validation(op, "invalid tree hash %q", c.TreeHash)
	}
	for _, p := range c.Parents {
		if !hasher.Valid(p) {
			return errors.Validation(op, "invalid parent hash %q", p)
		}
	}
	if strings.ContainsAny(c.Author, "\n\r") {
		return errors.Validation(op, "author %q contains a newline", c.Author)
	}
	return nil
}

// Validate runs the kind-specific checks on o. Blobs are always valid.
func Validate(o Object) error {
	switch v := o.(type) {
	case *Tree:
		return v.Validate()
	case *Commit:
		return v.Validate()
	}
	return nil
}
