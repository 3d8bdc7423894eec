package cachestore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// PrunePolicy controls what prune trims from the workspace cache directory
// before the entry is persisted.
type PrunePolicy struct {
	// Retain lists doublestar globs (relative to the cache dir, slash
	// separated) of entries to keep. Files matching no pattern are
	// removed. Empty retains everything.
	Retain []string

	// MaxIdleAge removes files not modified within this duration.
	// Zero disables age-based trimming.
	MaxIdleAge time.Duration
}

// PruneResult summarizes one prune pass.
type PruneResult struct {
	// FilesRemoved is the number of files trimmed.
	FilesRemoved int

	// BytesFreed is the cumulative size of trimmed files.
	BytesFreed int64

	// FilesKept is the number of files surviving the pass.
	FilesKept int
}

// PruneDir trims dir according to policy and removes directories left
// empty. A missing dir is a no-op, not an error: a skipped plan may never
// have created the cache directory.
func PruneDir(dir string, policy PrunePolicy, now time.Time) (*PruneResult, error) {
	result := &PruneResult{}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("stat cache dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cache path %s is not a directory", dir)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		keep, err := retained(rel, policy.Retain)
		if err != nil {
			return err
		}

		if keep && policy.MaxIdleAge > 0 {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if now.Sub(fi.ModTime()) > policy.MaxIdleAge {
				keep = false
			}
		}

		if keep {
			result.FilesKept++
			return nil
		}

		fi, err := d.Info()
		if err == nil {
			result.BytesFreed += fi.Size()
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", rel, err)
		}
		result.FilesRemoved++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := removeEmptyDirs(dir); err != nil {
		return nil, err
	}

	return result, nil
}

// retained reports whether rel matches any retain pattern.
// An empty pattern list retains everything.
func retained(rel string, patterns []string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("invalid retain pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// removeEmptyDirs removes directories under root left empty after pruning.
// Children are visited before parents so nested empties collapse in one pass.
func removeEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			_ = os.Remove(dirs[i])
		}
	}
	return nil
}
