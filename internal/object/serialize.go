package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
)

// Encode returns the tagged bytes that are hashed and stored:
// kind ":" payload.
func Encode(o Object) []byte {
	payload := o.Payload()
	buf := make([]byte, 0, len(o.Kind())+1+len(payload))
	buf = append(buf, o.Kind()...)
	buf = append(buf, ':')
	return append(buf, payload...)
}

// Decode splits stored bytes back into kind and payload.
func Decode(data []byte) (Kind, []byte, error) {
	idx := bytes.IndexByte(data, ':')
	if idx < 0 {
		return "", nil, fmt.Errorf("decode: missing kind tag")
	}
	kind, err := ParseKind(string(data[:idx]))
	if err != nil {
		return "", nil, fmt.Errorf("decode: %w", err)
	}
	return kind, data[idx+1:], nil
}

// Parse rebuilds an object of the given kind from its payload. hash is
// assigned as-is; callers verify it before parsing.
func Parse(kind Kind, hash string, payload []byte) (Object, error) {
	switch kind {
	case KindBlob:
		content := make([]byte, len(payload))
		copy(content, payload)
		return &Blob{Hash: hash, Content: content}, nil
	case KindTree:
		t, err := UnmarshalTree(payload)
		if err != nil {
			return nil, err
		}
		t.Hash = hash
		return t, nil
	case KindCommit:
		c, err := UnmarshalCommit(payload)
		if err != nil {
			return nil, err
		}
		c.Hash = hash
		return c, nil
	}
	return nil, fmt.Errorf("parse: unknown object kind %q", kind)
}

// Sort puts entries in canonical order: by name, then kind, then hash.
func Sort(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Hash < b.Hash
	})
}

// Payload serializes the entries in canonical order regardless of the order
// they are held in:
//
//	<mode> <kind> <hash> <name>
func (t *Tree) Payload() []byte {
	sorted := make([]TreeEntry, len(t.Entries))
	copy(sorted, t.Entries)
	Sort(sorted)

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s %s %s\n", e.Mode, e.Kind, e.Hash, e.Name)
	}
	return buf.Bytes()
}

// Seal sorts the entries and sets the tree's hash.
func (t *Tree) Seal(h hasher.Hasher) string {
	Sort(t.Entries)
	t.Hash = h.Digest(string(KindTree), t.Payload())
	return t.Hash
}

func UnmarshalTree(data []byte) (*Tree, error) {
	t := &Tree{}
	if len(data) == 0 {
		return t, nil
	}
	if data[len(data)-1] != '\n' {
		return nil, fmt.Errorf("unmarshal tree: missing trailing newline")
	}
	for i, line := range strings.Split(string(data[:len(data)-1]), "\n") {
		// the name is last so it may contain spaces
		parts := strings.SplitN(line, " ", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("unmarshal tree: line %d: expected 4 fields, got %d", i+1, len(parts))
		}
		kind, err := ParseKind(parts[1])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: line %d: %w", i+1, err)
		}
		t.Entries = append(t.Entries, TreeEntry{
			Mode: parts[0],
			Kind: kind,
			Hash: parts[2],
			Name: parts[3],
		})
	}
	return t, nil
}

// Payload serializes the commit:
//
//	tree <hash>
//	parent <hash>      (zero or more)
//	author <author>
//	timestamp <unix>
//
//	<message>
func (c *Commit) Payload() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Seal sets the commit's hash. An empty parent list is normalized to nil.
func (c *Commit) Seal(h hasher.Hasher) string {
	if len(c.Parents) == 0 {
		c.Parents = nil
	}
	c.Hash = h.Digest(string(KindCommit), c.Payload())
	return c.Hash
}

func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	body := string(data[idx+2:])
	if !strings.HasSuffix(body, "\n") {
		return nil, fmt.Errorf("unmarshal commit: message missing trailing newline")
	}

	c := &Commit{Message: strings.TrimSuffix(body, "\n")}
	var sawTree, sawAuthor, sawTimestamp bool
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = val
			sawTree = true
		case "parent":
			c.Parents = append(c.Parents, val)
		case "author":
			c.Author = val
			sawAuthor = true
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
			sawTimestamp = true
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	if !sawTree || !sawAuthor || !sawTimestamp {
		return nil, fmt.Errorf("unmarshal commit: missing required header")
	}
	return c, nil
}
