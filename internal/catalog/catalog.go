// internal/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
)

const keyPrefix = "object:"

// Entry is the metadata kept for one stored object. The object files remain
// the source of truth; the catalog can always be rebuilt from them.
type Entry struct {
	Hash     string    `json:"hash"`
	Kind     string    `json:"kind"`
	Size     int64     `json:"size"`
	StoredAt time.Time `json:"stored_at"`
}

// KindStats aggregates entries of one kind.
type KindStats struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// Catalog indexes object metadata in badger.
type Catalog struct {
	db *badger.DB
}

// Open opens (or creates) an on-disk catalog in dir. Badger holds a
// directory lock, so a second process opening the same dir fails here.
func Open(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.StorageIO("open catalog", err)
	}

	opts := badger.DefaultOptions(dir).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.StorageIO("open catalog", err)
	}
	return &Catalog{db: db}, nil
}

// OpenInMemory returns a catalog that lives only as long as the process.
func OpenInMemory() (*Catalog, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.StorageIO("open catalog", err)
	}
	return &Catalog{db: db}, nil
}

// New wraps an already opened database. The caller keeps ownership of db.
func New(db *badger.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return errors.StorageIO("close catalog", err)
	}
	return nil
}

func makeKey(hash string) []byte {
	return []byte(keyPrefix + hash)
}

// Record stores e unless an entry for the same hash already exists. Objects
// are immutable, so the first record wins.
func (c *Catalog) Record(e Entry) error {
	if e.Hash == "" {
		return errors.Validation("record", "entry hash cannot be empty")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	key := makeKey(e.Hash)
	err = c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return errors.StorageIO("record", err)
	}
	return nil
}

func (c *Catalog) Lookup(hash string) (Entry, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})

	if err == badger.ErrKeyNotFound {
		return Entry{}, errors.NotFound("lookup", "no catalog entry for %s", hash)
	}
	if err != nil {
		return Entry{}, errors.StorageIO("lookup", err)
	}
	return e, nil
}

// List returns entries ordered by hash. An empty kind lists everything.
func (c *Catalog) List(kind string) ([]Entry, error) {
	var entries []Entry
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", strings.TrimPrefix(string(it.Item().Key()), keyPrefix), err)
			}
			if kind == "" || e.Kind == kind {
				entries = append(entries, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.StorageIO("list", err)
	}
	return entries, nil
}

// Stats returns per-kind totals.
func (c *Catalog) Stats() (map[string]KindStats, error) {
	entries, err := c.List("")
	if err != nil {
		return nil, err
	}

	stats := make(map[string]KindStats)
	for _, e := range entries {
		s := stats[e.Kind]
		s.Count++
		s.Bytes += e.Size
		stats[e.Kind] = s
	}
	return stats, nil
}

// Reset removes every entry.
func (c *Catalog) Reset() error {
	if err := c.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return errors.StorageIO("reset", err)
	}
	return nil
}
