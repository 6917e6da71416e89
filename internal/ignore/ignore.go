// Package ignore decides which working-tree paths a directory add skips.
// Patterns use gitignore syntax and are read from .myvcsignore at the
// repository root.
package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	gitignore "github.com/denormal/go-gitignore"
)

const FileName = ".myvcsignore"

var defaultPatterns = []string{
	".git/**",
	FileName,
}

// Matcher answers ignore queries for one repository root.
type Matcher struct {
	root    string
	repoDir string
	ignore  gitignore.GitIgnore
	mu      sync.Mutex // the gitignore matcher is not safe for concurrent use
}

// Load compiles the default patterns plus root/.myvcsignore, if present.
// repoDirName is always ignored, whatever the file says.
func Load(root, repoDirName string) (*Matcher, error) {
	raw := append([]string{repoDirName + "/**"}, defaultPatterns...)

	content, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		raw = append(raw, strings.Split(string(content), "\n")...)
	}

	return &Matcher{
		root:    root,
		repoDir: repoDirName,
		ignore:  compile(root, raw),
	}, nil
}

func compile(base string, raw []string) gitignore.GitIgnore {
	var patterns []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		p = strings.ReplaceAll(p, "\\", "/")
		if strings.HasSuffix(p, "/") && !strings.HasSuffix(p, "**/") {
			p += "**"
		}
		patterns = append(patterns, p)
	}

	m := gitignore.New(
		strings.NewReader(strings.Join(patterns, "\n")),
		base,
		func(err gitignore.Error) bool { return false },
	)
	if m == nil {
		return gitignore.New(strings.NewReader(""), base, nil)
	}
	return m
}

// Ignored reports whether rel, a slash-separated path relative to the
// repository root, should be skipped.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	if rel == "" || rel == "." {
		return false
	}
	if rel == m.repoDir || strings.HasPrefix(rel, m.repoDir+"/") {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	match := m.ignore.Relative(rel, isDir)
	if match == nil {
		return false
	}
	return match.Ignore()
}
