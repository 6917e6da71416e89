package repository

import (
	"go.uber.org/zap"

	"github.com/Sqizeeeeee/lab7-part2/internal/catalog"
	"github.com/Sqizeeeeee/lab7-part2/internal/errors"
	"github.com/Sqizeeeeee/lab7-part2/internal/object"
)

// Cat loads any stored object.
func (r *Repository) Cat(hash string) (object.Object, error) {
	return r.store.Get(hash)
}

type VerifyReport struct {
	Checked int      `json:"checked"`
	Corrupt []string `json:"corrupt,omitempty"`
}

// Verify re-hashes every stored object from disk. Corrupt objects are
// collected in the report; any other failure aborts the run.
func (r *Repository) Verify() (*VerifyReport, error) {
	hashes, err := r.store.List()
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{}
	for _, hash := range hashes {
		report.Checked++
		err := r.store.Verify(hash)
		if err == nil {
			continue
		}
		if errors.KindOf(err) != errors.KindCorrupt {
			return report, err
		}
		r.logger.Warn("corrupt object", zap.String("hash", hash), zap.Error(err))
		report.Corrupt = append(report.Corrupt, hash)
	}
	return report, nil
}

// Objects lists catalog entries, optionally restricted to one kind.
func (r *Repository) Objects(kind string) ([]catalog.Entry, error) {
	if kind != "" {
		if _, err := object.ParseKind(kind); err != nil {
			return nil, errors.Validation("objects", "%v", err)
		}
	}
	return r.catalog.List(kind)
}

func (r *Repository) ObjectStats() (map[string]catalog.KindStats, error) {
	return r.catalog.Stats()
}

// Reindex rebuilds the catalog from the object files. Corrupt objects are
// left out. It returns the number of entries recorded.
func (r *Repository) Reindex() (int, error) {
	hashes, err := r.store.List()
	if err != nil {
		return 0, err
	}
	if err := r.catalog.Reset(); err != nil {
		return 0, err
	}

	count := 0
	for _, hash := range hashes {
		entry, err := r.store.Describe(hash)
		if err != nil {
			if errors.KindOf(err) == errors.KindCorrupt {
				r.logger.Warn("skipping corrupt object", zap.String("hash", hash), zap.Error(err))
				continue
			}
			return count, err
		}
		if err := r.catalog.Record(entry); err != nil {
			return count, err
		}
		count++
	}

	r.logger.Info("reindexed catalog", zap.Int("count", count))
	return count, nil
}
