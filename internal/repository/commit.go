package repository

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Sqizeeeeee/lab7-part2/internal/config"
	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/fsutil"
	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
	"github.com/Sqizeeeeee/lab7-part2/internal/object"
)

// Commit snapshots the index into a tree, records a commit on top of HEAD,
// moves HEAD to it and clears the index. An empty index is an error and
// leaves the store untouched. An empty author falls back to the configured
// one.
func (r *Repository) Commit(message, author string) (*object.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.index.Entries()
	if len(entries) == 0 {
		return nil, errors.NothingToCommit("commit")
	}

	if author == "" {
		author = r.cfg.Author
	}
	if author == "" {
		author = config.DefaultAuthor
	}
	if strings.ContainsAny(author, "\r\n") {
		return nil, errors.Validation("commit", "author %q contains a newline", author)
	}

	files := make([]object.StagedFile, len(entries))
	for i, e := range entries {
		files[i] = object.StagedFile{Path: e.Path, BlobHash: e.BlobHash}
	}
	tree, err := object.AssembleTree(r.hasher, files)
	if err != nil {
		return nil, err
	}
	if _, err := r.store.PutTree(tree); err != nil {
		return nil, err
	}

	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	var parents []string
	if head != "" {
		parents = []string{head}
	}

	commit := &object.Commit{
		TreeHash:  tree.Hash,
		Parents:   parents,
		Author:    author,
		Message:   message,
		Timestamp: r.now().Unix(),
	}
	if _, err := r.store.PutCommit(commit); err != nil {
		return nil, err
	}

	if err := fsutil.WriteFileAtomic(r.headPath(), []byte(commit.Hash+"\n"), 0644); err != nil {
		return nil, errors.StorageIO("update HEAD", err)
	}
	if err := r.index.Clear(); err != nil {
		return nil, err
	}

	r.logger.Info("committed",
		zap.String("hash", commit.Hash),
		zap.String("tree", tree.Hash),
		zap.Int("count", len(entries)),
	)
	return commit, nil
}

// Head returns the hash HEAD points at, or "" before the first commit.
func (r *Repository) Head() (string, error) {
	data, err := os.ReadFile(r.headPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.StorageIO("read HEAD", err)
	}

	head := strings.TrimSpace(string(data))
	if head == "" {
		return "", nil
	}
	if !hasher.Valid(head) {
		return "", errors.Corrupt("read HEAD", nil, "HEAD holds %q", head)
	}
	return head, nil
}

// Log walks first parents from HEAD, newest first. A limit of zero or less
// means no limit.
func (r *Repository) Log(limit int) ([]*object.Commit, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}

	var commits []*object.Commit
	seen := make(map[string]struct{})
	for hash := head; hash != ""; {
		if limit > 0 && len(commits) >= limit {
			break
		}
		if _, ok := seen[hash]; ok {
			return commits, errors.Corrupt("log", nil, "commit history loops at %s", hash)
		}
		seen[hash] = struct{}{}

		c, err := r.store.GetCommit(hash)
		if err != nil {
			return commits, err
		}
		commits = append(commits, c)

		hash = ""
		if len(c.Parents) > 0 {
			hash = c.Parents[0]
		}
	}
	return commits, nil
}
