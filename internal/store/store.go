// internal/store/store.go
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Sqizeeeeee/lab7-part2/internal/catalog"
	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/fsutil"
	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
	"github.com/Sqizeeeeee/lab7-part2/internal/object"
)

// Recorder receives metadata for every object the store writes.
type Recorder interface {
	Record(e catalog.Entry) error
}

// Store persists objects as files named by their hash in a single flat
// directory. Each file holds exactly the tagged bytes that were hashed.
type Store struct {
	dir      string
	hasher   hasher.Hasher
	cache    *lru.Cache[string, []byte] // verified tagged bytes; nil when disabled
	recorder Recorder
	logger   *zap.Logger
}

type Option func(*Store) error

func WithHasher(h hasher.Hasher) Option {
	return func(s *Store) error {
		s.hasher = h
		return nil
	}
}

// WithCacheSize keeps up to n recently used objects in memory. Zero disables
// the cache.
func WithCacheSize(n int) Option {
	return func(s *Store) error {
		if n <= 0 {
			s.cache = nil
			return nil
		}
		cache, err := lru.New[string, []byte](n)
		if err != nil {
			return fmt.Errorf("creating cache: %w", err)
		}
		s.cache = cache
		return nil
	}
}

func WithCatalog(r Recorder) Option {
	return func(s *Store) error {
		s.recorder = r
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) error {
		s.logger = l
		return nil
	}
}

// New creates a store rooted at dir. It does not touch the file system;
// call Initialize before the first Put.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("objects directory is required")
	}

	s := &Store{
		dir:    dir,
		hasher: hasher.Default(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Dir() string           { return s.dir }
func (s *Store) Hasher() hasher.Hasher { return s.hasher }

// Initialize creates the objects directory. An existing directory is fine.
func (s *Store) Initialize() error {
	if err := fsutil.EnsureDir(s.dir); err != nil {
		return errors.StorageIO("initialize", err)
	}
	return nil
}

func (s *Store) objectPath(hash string) string {
	return filepath.Join(s.dir, hash)
}

// Put validates, hashes and persists obj, returning its hash. Storing an
// object that already exists is a no-op that returns the same hash.
func (s *Store) Put(obj object.Object) (string, error) {
	const op = "put"

	if err := object.Validate(obj); err != nil {
		return "", err
	}

	data := object.Encode(obj)
	hash := s.hasher.Sum(data)
	if id := obj.ID(); id != "" && id != hash {
		return "", errors.Validation(op, "%s hash %s does not match content hash %s", obj.Kind(), id, hash)
	}

	path := s.objectPath(hash)
	_, err := os.Stat(path)
	switch {
	case err == nil:
		s.logger.Debug("object already stored", zap.String("hash", hash), zap.String("kind", obj.Kind().String()))
		return hash, nil
	case !os.IsNotExist(err):
		return "", errors.StorageIO(op, err)
	}

	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return "", errors.StorageIO(op, err)
	}

	if s.cache != nil {
		s.cache.Add(hash, data)
	}
	if s.recorder != nil {
		entry := catalog.Entry{
			Hash:     hash,
			Kind:     obj.Kind().String(),
			Size:     int64(len(obj.Payload())),
			StoredAt: time.Now().UTC(),
		}
		// the object is durable at this point; catalog drift is repaired by reindex
		if err := s.recorder.Record(entry); err != nil {
			s.logger.Warn("recording object in catalog", zap.String("hash", hash), zap.Error(err))
		}
	}

	s.logger.Debug("stored object",
		zap.String("hash", hash),
		zap.String("kind", obj.Kind().String()),
		zap.Int("size", len(data)),
	)
	return hash, nil
}

// Get loads and verifies the object stored under hash.
func (s *Store) Get(hash string) (object.Object, error) {
	if !hasher.Valid(hash) {
		return nil, errors.NotFound("get", "object %q not found", hash)
	}

	if s.cache != nil {
		if data, ok := s.cache.Get(hash); ok {
			return s.parse(hash, data)
		}
	}

	data, err := s.load(hash)
	if err != nil {
		return nil, err
	}
	obj, err := s.parse(hash, data)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(hash, data)
	}
	return obj, nil
}

// load reads the object file and checks that it re-hashes to hash.
func (s *Store) load(hash string) ([]byte, error) {
	const op = "get"

	data, err := os.ReadFile(s.objectPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(op, "object %s not found", hash)
		}
		return nil, errors.StorageIO(op, err)
	}

	if actual := s.hasher.Sum(data); actual != hash {
		s.logger.Warn("object hash mismatch", zap.String("hash", hash), zap.String("actual", actual))
		return nil, errors.Corrupt(op, nil, "object %s re-hashes to %s", hash, actual)
	}
	return data, nil
}

func (s *Store) parse(hash string, data []byte) (object.Object, error) {
	kind, payload, err := object.Decode(data)
	if err != nil {
		return nil, errors.Corrupt("get", err, "object %s unreadable", hash)
	}
	obj, err := object.Parse(kind, hash, payload)
	if err != nil {
		return nil, errors.Corrupt("get", err, "object %s unreadable", hash)
	}
	return obj, nil
}

// Exists reports whether an object file is present. Malformed hashes are
// simply absent.
func (s *Store) Exists(hash string) (bool, error) {
	if !hasher.Valid(hash) {
		return false, nil
	}
	if s.cache != nil && s.cache.Contains(hash) {
		return true, nil
	}

	_, err := os.Stat(s.objectPath(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.StorageIO("exists", err)
}

func (s *Store) PutBlob(b *object.Blob) (string, error) {
	hash, err := s.Put(b)
	if err == nil {
		b.Hash = hash
	}
	return hash, err
}

func (s *Store) PutTree(t *object.Tree) (string, error) {
	hash, err := s.Put(t)
	if err == nil {
		t.Hash = hash
	}
	return hash, err
}

// PutCommit stores c and sets its hash. An empty parent list is stored as
// nil, matching what GetCommit returns.
func (s *Store) PutCommit(c *object.Commit) (string, error) {
	if len(c.Parents) == 0 {
		c.Parents = nil
	}
	hash, err := s.Put(c)
	if err == nil {
		c.Hash = hash
	}
	return hash, err
}

func (s *Store) GetBlob(hash string) (*object.Blob, error) {
	obj, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	b, ok := obj.(*object.Blob)
	if !ok {
		return nil, kindMismatch(hash, object.KindBlob, obj.Kind())
	}
	return b, nil
}

func (s *Store) GetTree(hash string) (*object.Tree, error) {
	obj, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*object.Tree)
	if !ok {
		return nil, kindMismatch(hash, object.KindTree, obj.Kind())
	}
	return t, nil
}

func (s *Store) GetCommit(hash string) (*object.Commit, error) {
	obj, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*object.Commit)
	if !ok {
		return nil, kindMismatch(hash, object.KindCommit, obj.Kind())
	}
	return c, nil
}

func kindMismatch(hash string, want, got object.Kind) error {
	return errors.Corrupt("get", nil, "object %s is a %s, not a %s", hash, got, want)
}

// List returns the hashes of all stored objects in sorted order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.StorageIO("list", err)
	}

	hashes := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !hasher.Valid(name) {
			continue
		}
		hashes = append(hashes, name)
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Verify re-reads hash from disk, bypassing the cache, and checks that it
// re-hashes and parses.
func (s *Store) Verify(hash string) error {
	if !hasher.Valid(hash) {
		return errors.NotFound("verify", "object %q not found", hash)
	}
	data, err := s.load(hash)
	if err != nil {
		return err
	}
	_, err = s.parse(hash, data)
	return err
}

// Describe builds the catalog entry for a stored object from the file
// itself. The file's modification time stands in for the store time.
func (s *Store) Describe(hash string) (catalog.Entry, error) {
	if !hasher.Valid(hash) {
		return catalog.Entry{}, errors.NotFound("describe", "object %q not found", hash)
	}
	data, err := s.load(hash)
	if err != nil {
		return catalog.Entry{}, err
	}
	kind, payload, err := object.Decode(data)
	if err != nil {
		return catalog.Entry{}, errors.Corrupt("describe", err, "object %s unreadable", hash)
	}

	info, err := os.Stat(s.objectPath(hash))
	if err != nil {
		return catalog.Entry{}, errors.StorageIO("describe", err)
	}

	return catalog.Entry{
		Hash:     hash,
		Kind:     kind.String(),
		Size:     int64(len(payload)),
		StoredAt: info.ModTime().UTC(),
	}, nil
}
