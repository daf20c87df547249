// Package retention removes expired report artifacts from the reports directory.
package retention

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/rpc-harness/metrics"
)

// DefaultMaxAge is how long report artifacts are kept.
const DefaultMaxAge = time.Hour

// ReportExtensions are the suffixes of files the sweeper may remove.
var ReportExtensions = []string{".json", ".csv", ".md", ".html"}

// Remover deletes a single file. store.FileStore satisfies it.
type Remover interface {
	Remove(path string) error
}

type Sweeper struct {
	log   log.Logger
	store Remover
	now   func() time.Time
}

func NewSweeper(logger log.Logger, store Remover, now func() time.Time) *Sweeper {
	if logger == nil {
		logger = log.New()
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{log: logger, store: store, now: now}
}

// Sweep removes report files in dir last modified more than maxAge ago and
// returns how many were removed. Failures are logged, never returned.
func (s *Sweeper) Sweep(dir string, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("Reports directory does not exist, nothing to clean up", "dir", dir)
		} else {
			s.log.Error("Failed to list reports directory", "dir", dir, "err", err)
			metrics.RecordErrorDetails("sweep", err)
		}
		return 0
	}

	now := s.now()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !slices.Contains(ReportExtensions, filepath.Ext(entry.Name())) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.log.Warn("Failed to stat report file", "path", path, "err", err)
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= maxAge {
			continue
		}
		if err := s.store.Remove(path); err != nil {
			s.log.Warn("Failed to delete old report", "path", path, "err", err)
			continue
		}
		s.log.Debug("Deleted old report", "path", path, "age", age.Round(time.Second))
		removed++
	}

	s.log.Info("Cleaned up old reports", "dir", dir, "removed", removed, "max_age", maxAge)
	metrics.RecordSweep(removed)
	return removed
}
