// Package hasher computes the content digests that identify stored objects.
//
// Only cryptographic algorithms are registered: object identity relies on
// collision resistance. Every algorithm produces a 256-bit digest rendered as
// 64 lowercase hex characters, so the store and index never need to know which
// one a repository uses.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const (
	SHA256     = "sha256"
	SHA3_256   = "sha3-256"
	BLAKE2b256 = "blake2b-256"

	DefaultAlgorithm = SHA256

	// HexLen is the length of every digest string.
	HexLen = 64
)

// Hasher is a digest strategy.
type Hasher interface {
	Name() string

	// Sum digests data as-is.
	Sum(data []byte) string

	// Digest digests tag + ":" + payload without concatenating the two.
	Digest(tag string, payload []byte) string
}

type algorithm struct {
	name    string
	newHash func() hash.Hash
}

var registry = map[string]algorithm{
	SHA256:   {name: SHA256, newHash: sha256.New},
	SHA3_256: {name: SHA3_256, newHash: sha3.New256},
	BLAKE2b256: {name: BLAKE2b256, newHash: func() hash.Hash {
		// only fails for keys longer than 64 bytes
		h, _ := blake2b.New256(nil)
		return h
	}},
}

// New returns the hasher registered under name.
func New(name string) (Hasher, error) {
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown hash algorithm %q (supported: %v)", name, Names())
	}
	return a, nil
}

// Default returns the SHA-256 hasher.
func Default() Hasher {
	return registry[DefaultAlgorithm]
}

// Names lists the registered algorithms in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Valid reports whether s has the shape of a digest produced by this package.
func Valid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

func (a algorithm) Name() string {
	return a.name
}

func (a algorithm) Sum(data []byte) string {
	h := a.newHash()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (a algorithm) Digest(tag string, payload []byte) string {
	h := a.newHash()
	io.WriteString(h, tag)
	h.Write([]byte{':'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
