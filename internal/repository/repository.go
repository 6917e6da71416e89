// internal/repository/repository.go
package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sqizeeeeee/lab7-part2/internal/catalog"
	"github.com/Sqizeeeeee/lab7-part2/internal/config"
	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/fsutil"
	"github.com/Sqizeeeeee/lab7-part2/internal/hasher"
	"github.com/Sqizeeeeee/lab7-part2/internal/index"
	"github.com/Sqizeeeeee/lab7-part2/internal/store"
)

// Layout of the repository directory.
const (
	DirName    = ".my_vcs"
	ObjectsDir = "objects"
	IndexFile  = "index"
	HeadFile   = "HEAD"
	CatalogDir = "catalog"
)

// Repository ties the object store, the staging index and HEAD together for
// one working tree.
type Repository struct {
	root    string
	dir     string
	cfg     *config.Config
	hasher  hasher.Hasher
	store   *store.Store
	index   *index.Index
	catalog *catalog.Catalog
	logger  *zap.Logger
	now     func() time.Time

	// serializes staging against commit
	mu sync.Mutex
}

type options struct {
	logger          *zap.Logger
	now             func() time.Time
	cfg             *config.Config
	inMemoryCatalog bool
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithConfig replaces the configuration that would be read from disk. On
// Init it is also what gets written.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithInMemoryCatalog keeps the object catalog in memory instead of under
// .my_vcs/catalog.
func WithInMemoryCatalog() Option {
	return func(o *options) { o.inMemoryCatalog = true }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Init creates the repository layout under root and opens it. Running it on
// an existing repository leaves its contents and configuration untouched.
func Init(root string, opts ...Option) (*Repository, error) {
	o := buildOptions(opts)

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, DirName)

	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, errors.StorageIO("init", err)
	}
	s, err := store.New(filepath.Join(dir, ObjectsDir))
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(config.Path(dir)); os.IsNotExist(err) {
		cfg := o.cfg
		if cfg == nil {
			cfg = config.Default()
		}
		if err := config.Save(dir, cfg); err != nil {
			return nil, err
		}
		o.logger.Info("initialized repository", zap.String("root", root), zap.String("hash", cfg.Hash))
	} else if err != nil {
		return nil, errors.StorageIO("init", err)
	}

	return Open(root, opts...)
}

// Open opens the repository whose working tree is root.
func Open(root string, opts ...Option) (*Repository, error) {
	o := buildOptions(opts)

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, DirName)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.NotFound("open", "not a repository: %s", root)
	}

	cfg := o.cfg
	if cfg == nil {
		if cfg, err = config.Load(dir); err != nil {
			return nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, err := cfg.Hasher()
	if err != nil {
		return nil, err
	}

	var cat *catalog.Catalog
	if o.inMemoryCatalog {
		cat, err = catalog.OpenInMemory()
	} else {
		cat, err = catalog.Open(filepath.Join(dir, CatalogDir))
	}
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	s, err := store.New(filepath.Join(dir, ObjectsDir),
		store.WithHasher(h),
		store.WithCacheSize(cfg.CacheSize),
		store.WithCatalog(cat),
		store.WithLogger(o.logger),
	)
	if err != nil {
		cat.Close()
		return nil, err
	}

	ix, err := index.Load(filepath.Join(dir, IndexFile),
		index.WithLogger(o.logger),
		index.WithClock(o.now),
	)
	if err != nil {
		cat.Close()
		return nil, err
	}

	if skipped := ix.Skipped(); len(skipped) > 0 {
		o.logger.Warn("index had malformed lines", zap.Int("count", len(skipped)))
	}

	return &Repository{
		root:    root,
		dir:     dir,
		cfg:     cfg,
		hasher:  h,
		store:   s,
		index:   ix,
		catalog: cat,
		logger:  o.logger,
		now:     o.now,
	}, nil
}

// FindRoot walks up from startDir to the nearest directory holding a
// repository.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.NotFound("find root", "not a repository (or any parent up to /): %s", startDir)
}

func (r *Repository) Close() error {
	return r.catalog.Close()
}

func (r *Repository) Root() string           { return r.root }
func (r *Repository) Dir() string            { return r.dir }
func (r *Repository) Config() *config.Config { return r.cfg }
func (r *Repository) Store() *store.Store    { return r.store }
func (r *Repository) Index() *index.Index    { return r.index }

func (r *Repository) headPath() string {
	return filepath.Join(r.dir, HeadFile)
}
