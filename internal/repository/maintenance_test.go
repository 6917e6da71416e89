package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sqizeeeeee/lab7-part2/internal/catalog"
	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/object"
)

func TestStatus(t *testing.T) {
	repo := setupTestRepo(t)
	addFiles(t, repo, map[string]string{
		"clean.txt":    "clean",
		"modified.txt": "before",
		"deleted.txt":  "gone soon",
	})
	writeFile(t, repo, "modified.txt", "after")
	require.NoError(t, os.Remove(filepath.Join(repo.Root(), "deleted.txt")))

	st, err := repo.Status()
	require.NoError(t, err)
	assert.Empty(t, st.Head)

	states := make(map[string]FileState)
	for _, e := range st.Staged {
		states[e.Path] = e.State
	}
	assert.Equal(t, map[string]FileState{
		"clean.txt":    StateStaged,
		"deleted.txt":  StateDeleted,
		"modified.txt": StateModified,
	}, states)

	_, err = repo.Commit("snapshot", "")
	require.NoError(t, err)

	st, err = repo.Status()
	require.NoError(t, err)
	assert.NotEmpty(t, st.Head)
	assert.Empty(t, st.Staged)
}

func TestCat(t *testing.T) {
	repo := setupTestRepo(t)
	addFiles(t, repo, map[string]string{"f.txt": "cat me"})
	commit, err := repo.Commit("m", "")
	require.NoError(t, err)

	obj, err := repo.Cat(commit.Hash)
	require.NoError(t, err)
	assert.Equal(t, object.KindCommit, obj.Kind())

	obj, err = repo.Cat(commit.TreeHash)
	require.NoError(t, err)
	assert.Equal(t, object.KindTree, obj.Kind())

	_, err = repo.Cat("0000")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestVerify(t *testing.T) {
	repo := setupTestRepo(t)
	addFiles(t, repo, map[string]string{"a": "a", "b": "b"})
	_, err := repo.Commit("m", "")
	require.NoError(t, err)

	report, err := repo.Verify()
	require.NoError(t, err)
	assert.Equal(t, 4, report.Checked)
	assert.Empty(t, report.Corrupt)

	hashes, err := repo.Store().List()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), ObjectsDir, hashes[0]), []byte("blob:rot"), 0644))

	report, err = repo.Verify()
	require.NoError(t, err)
	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, []string{hashes[0]}, report.Corrupt)
}

func TestObjectsAndReindex(t *testing.T) {
	repo := setupTestRepo(t)
	addFiles(t, repo, map[string]string{"a": "aaa", "b": "bb"})
	_, err := repo.Commit("m", "")
	require.NoError(t, err)

	t.Run("catalog tracks every write", func(t *testing.T) {
		stats, err := repo.ObjectStats()
		require.NoError(t, err)
		assert.Equal(t, catalog.KindStats{Count: 2, Bytes: 5}, stats["blob"])
		assert.Equal(t, 1, stats["tree"].Count)
		assert.Equal(t, 1, stats["commit"].Count)

		blobs, err := repo.Objects("blob")
		require.NoError(t, err)
		assert.Len(t, blobs, 2)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := repo.Objects("tag")
		assert.ErrorIs(t, err, errors.ErrValidation)
	})

	t.Run("reindex rebuilds from disk and skips corrupt objects", func(t *testing.T) {
		blobs, err := repo.Objects("blob")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), ObjectsDir, blobs[0].Hash), []byte("blob:rot"), 0644))

		n, err := repo.Reindex()
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		all, err := repo.Objects("")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestCatalogOnDisk(t *testing.T) {
	root := t.TempDir()
	repo, err := Init(root)
	require.NoError(t, err)
	writeFile(t, repo, "a.txt", "persisted")
	_, err = repo.Add(context.Background(), []string{"a.txt"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := Open(root)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Objects("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blob", entries[0].Kind)
	assert.Equal(t, int64(len("persisted")), entries[0].Size)
}
