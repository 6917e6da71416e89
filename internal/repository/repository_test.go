package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sqizeeeeee/lab7-part2/internal/config"
	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
	"github.com/Sqizeeeeee/lab7-part2/internal/object"
)

var fixedNow = time.Unix(1700000000, 0)

func setupTestRepo(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	root := t.TempDir()
	opts = append([]Option{
		WithInMemoryCatalog(),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	repo, err := Init(root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func writeFile(t *testing.T, repo *Repository, rel, content string) {
	t.Helper()
	path := filepath.Join(repo.Root(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func objectCount(t *testing.T, repo *Repository) int {
	t.Helper()
	hashes, err := repo.Store().List()
	require.NoError(t, err)
	return len(hashes)
}

func TestInit(t *testing.T) {
	t.Run("creates layout", func(t *testing.T) {
		repo := setupTestRepo(t)

		for _, p := range []string{DirName, filepath.Join(DirName, ObjectsDir)} {
			info, err := os.Stat(filepath.Join(repo.Root(), p))
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		}
		_, err := os.Stat(config.Path(repo.Dir()))
		assert.NoError(t, err)

		head, err := repo.Head()
		require.NoError(t, err)
		assert.Empty(t, head)
	})

	t.Run("idempotent", func(t *testing.T) {
		root := t.TempDir()
		cfg := config.Default()
		cfg.Author = "first"

		repo, err := Init(root, WithInMemoryCatalog(), WithConfig(cfg))
		require.NoError(t, err)
		writeFile(t, repo, "a.txt", "keep me")
		_, err = repo.Add(context.Background(), []string{"a.txt"})
		require.NoError(t, err)
		require.NoError(t, repo.Close())

		again, err := Init(root, WithInMemoryCatalog())
		require.NoError(t, err)
		defer again.Close()

		assert.Equal(t, "first", again.Config().Author)
		assert.Equal(t, 1, objectCount(t, again))
		assert.True(t, again.Index().Contains("a.txt"))
	})

	t.Run("open outside a repository", func(t *testing.T) {
		_, err := Open(t.TempDir(), WithInMemoryCatalog())
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("objects path blocked by a file", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, DirName), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, DirName, ObjectsDir), nil, 0644))

		_, err := Init(root, WithInMemoryCatalog())
		assert.ErrorIs(t, err, errors.ErrStorageIO)
	})
}

func TestFindRoot(t *testing.T) {
	repo := setupTestRepo(t)
	sub := filepath.Join(repo.Root(), "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	root, err := FindRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, repo.Root(), root)

	_, err = FindRoot(t.TempDir())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("blob hash is deterministic and stored once", func(t *testing.T) {
		repo := setupTestRepo(t)
		writeFile(t, repo, "hello.txt", "hello world")

		entries, err := repo.Add(ctx, []string{"hello.txt"})
		require.NoError(t, err)
		require.Len(t, entries, 1)

		want := hasher.Default().Digest("blob", []byte("hello world"))
		assert.Equal(t, want, entries[0].BlobHash)
		assert.Equal(t, fixedNow.Unix(), entries[0].StagedAt)

		_, err = repo.Add(ctx, []string{"hello.txt"})
		require.NoError(t, err)
		assert.Equal(t, 1, objectCount(t, repo))
	})

	t.Run("identical content under two paths", func(t *testing.T) {
		repo := setupTestRepo(t)
		writeFile(t, repo, "one.txt", "same")
		writeFile(t, repo, "dir/two.txt", "same")

		entries, err := repo.Add(ctx, []string{"one.txt", "dir/two.txt"})
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, entries[0].BlobHash, entries[1].BlobHash)
		assert.Equal(t, 1, objectCount(t, repo))
		assert.Equal(t, []string{"dir/two.txt", "one.txt"}, repo.Index().StagedPaths())
	})

	t.Run("restaging replaces the entry", func(t *testing.T) {
		repo := setupTestRepo(t)
		writeFile(t, repo, "p.txt", "v1")
		first, err := repo.Add(ctx, []string{"p.txt"})
		require.NoError(t, err)

		writeFile(t, repo, "p.txt", "v2")
		second, err := repo.Add(ctx, []string{"p.txt"})
		require.NoError(t, err)

		assert.NotEqual(t, first[0].BlobHash, second[0].BlobHash)
		assert.Equal(t, 1, repo.Index().Len())
		e, ok := repo.Index().Get("p.txt")
		require.True(t, ok)
		assert.Equal(t, second[0].BlobHash, e.BlobHash)
	})

	t.Run("directory walk applies ignore rules", func(t *testing.T) {
		repo := setupTestRepo(t)
		writeFile(t, repo, ".myvcsignore", "*.log\nbuild/\n")
		writeFile(t, repo, "src/main.go", "package main")
		writeFile(t, repo, "src/debug.log", "noise")
		writeFile(t, repo, "build/out.bin", "binary")
		writeFile(t, repo, "README", "readme")

		_, err := repo.Add(ctx, []string{"."})
		require.NoError(t, err)

		assert.Equal(t, []string{"README", "src/main.go"}, repo.Index().StagedPaths())
	})

	t.Run("ignore file edits apply to the next add", func(t *testing.T) {
		repo := setupTestRepo(t)
		writeFile(t, repo, "keep.txt", "keep")
		writeFile(t, repo, "tmp/scratch.txt", "scratch")

		_, err := repo.Add(ctx, []string{"."})
		require.NoError(t, err)
		assert.Equal(t, []string{"keep.txt", "tmp/scratch.txt"}, repo.Index().StagedPaths())

		_, err = repo.Unstage([]string{"."})
		require.NoError(t, err)
		writeFile(t, repo, ".myvcsignore", "tmp/\n")

		_, err = repo.Add(ctx, []string{"."})
		require.NoError(t, err)
		assert.Equal(t, []string{"keep.txt"}, repo.Index().StagedPaths())
	})

	t.Run("absolute paths inside the root", func(t *testing.T) {
		repo := setupTestRepo(t)
		writeFile(t, repo, "abs.txt", "x")

		entries, err := repo.Add(ctx, []string{filepath.Join(repo.Root(), "abs.txt")})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "abs.txt", entries[0].Path)
	})

	t.Run("empty file", func(t *testing.T) {
		repo := setupTestRepo(t)
		writeFile(t, repo, "empty", "")

		entries, err := repo.Add(ctx, []string{"empty"})
		require.NoError(t, err)
		blob, err := repo.Store().GetBlob(entries[0].BlobHash)
		require.NoError(t, err)
		assert.Empty(t, blob.Content)
	})
}

func TestAddRejects(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	writeFile(t, repo, "has space.txt", "x")
	writeFile(t, repo, "no\u00a0break.txt", "x")

	tests := []struct {
		name string
		path string
		kind error
	}{
		{"missing file", "nope.txt", errors.ErrNotFound},
		{"outside the root", "../elsewhere.txt", errors.ErrValidation},
		{"repository internals", DirName + "/HEAD", errors.ErrValidation},
		{"whitespace in path", "has space.txt", errors.ErrValidation},
		{"unicode space in path", "no\u00a0break.txt", errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Add(ctx, []string{tt.path})
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	assert.True(t, repo.Index().IsEmpty())
	assert.Equal(t, 0, objectCount(t, repo))
}

func TestAddCanceled(t *testing.T) {
	repo := setupTestRepo(t)
	writeFile(t, repo, "a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Add(ctx, []string{"a.txt"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, repo.Index().IsEmpty())
}

func TestUnstage(t *testing.T) {
	repo := setupTestRepo(t)
	writeFile(t, repo, "top.txt", "t")
	writeFile(t, repo, "dir/a.txt", "a")
	writeFile(t, repo, "dir/b.txt", "b")
	_, err := repo.Add(context.Background(), []string{"."})
	require.NoError(t, err)

	removed, err := repo.Unstage([]string{"dir"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/a.txt", "dir/b.txt"}, removed)

	removed, err = repo.Unstage([]string{"not-staged.txt"})
	require.NoError(t, err)
	assert.Empty(t, removed)

	assert.Equal(t, []string{"top.txt"}, repo.Index().StagedPaths())
}

func TestIndexSurvivesReopen(t *testing.T) {
	root := t.TempDir()
	repo, err := Init(root, WithInMemoryCatalog())
	require.NoError(t, err)
	writeFile(t, repo, "a.txt", "a")
	_, err = repo.Add(context.Background(), []string{"a.txt"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := Open(root, WithInMemoryCatalog())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, []string{"a.txt"}, reopened.Index().StagedPaths())
}

func TestOpenWithMalformedIndex(t *testing.T) {
	root := t.TempDir()
	repo, err := Init(root, WithInMemoryCatalog())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	blob := object.NewBlob(hasher.Default(), []byte("x"), "")
	content := "good.txt " + blob.Hash + " 100\nbroken line\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, DirName, IndexFile), []byte(content), 0644))

	repo, err = Open(root, WithInMemoryCatalog())
	require.NoError(t, err)
	defer repo.Close()

	assert.Equal(t, []string{"good.txt"}, repo.Index().StagedPaths())
	require.Len(t, repo.Index().Skipped(), 1)
	assert.ErrorIs(t, repo.Index().Skipped()[0], errors.ErrIndexCorruptLine)
}
