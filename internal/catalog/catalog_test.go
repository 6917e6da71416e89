package catalog

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
)

func setupTestCatalog(t *testing.T) (*Catalog, func()) {
	dir, err := os.MkdirTemp("", "catalog-test")
	require.NoError(t, err)

	opts := badger.DefaultOptions(dir).WithInMemory(true)
	opts.Logger = nil // Disable logging for tests
	opts.Dir = ""
	opts.ValueDir = ""

	db, err := badger.Open(opts)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.RemoveAll(dir)
	}
	return New(db), cleanup
}

func entry(c, kind string, size int64) Entry {
	return Entry{
		Hash:     strings.Repeat(c, 64),
		Kind:     kind,
		Size:     size,
		StoredAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestCatalogRecordAndLookup(t *testing.T) {
	c, cleanup := setupTestCatalog(t)
	defer cleanup()

	t.Run("record then lookup", func(t *testing.T) {
		e := entry("a", "blob", 5)
		require.NoError(t, c.Record(e))

		got, err := c.Lookup(e.Hash)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	})

	t.Run("first record wins", func(t *testing.T) {
		first := entry("b", "blob", 1)
		second := first
		second.Size = 99

		require.NoError(t, c.Record(first))
		require.NoError(t, c.Record(second))

		got, err := c.Lookup(first.Hash)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Size)
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := c.Lookup(strings.Repeat("f", 64))
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("empty hash rejected", func(t *testing.T) {
		err := c.Record(Entry{Kind: "blob"})
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestCatalogListAndStats(t *testing.T) {
	c, cleanup := setupTestCatalog(t)
	defer cleanup()

	require.NoError(t, c.Record(entry("c", "tree", 100)))
	require.NoError(t, c.Record(entry("a", "blob", 10)))
	require.NoError(t, c.Record(entry("b", "blob", 20)))
	require.NoError(t, c.Record(entry("d", "commit", 200)))

	t.Run("all sorted by hash", func(t *testing.T) {
		all, err := c.List("")
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i := 1; i < len(all); i++ {
			assert.Less(t, all[i-1].Hash, all[i].Hash)
		}
	})

	t.Run("filter by kind", func(t *testing.T) {
		blobs, err := c.List("blob")
		require.NoError(t, err)
		require.Len(t, blobs, 2)
		assert.Equal(t, "blob", blobs[0].Kind)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := c.Stats()
		require.NoError(t, err)
		assert.Equal(t, KindStats{Count: 2, Bytes: 30}, stats["blob"])
		assert.Equal(t, KindStats{Count: 1, Bytes: 100}, stats["tree"])
		assert.Equal(t, KindStats{Count: 1, Bytes: 200}, stats["commit"])
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, c.Reset())
		all, err := c.List("")
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.Record(entry("e", "blob", 3)))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Lookup(strings.Repeat("e", 64))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Size)
}
