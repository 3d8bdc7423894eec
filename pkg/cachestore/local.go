package cachestore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps cache entries as directory trees under a root.
//
// Directory layout:
//
//	<root>/<key>/...entry files...
//
// Save replaces an entry atomically at the directory level: the new tree is
// staged under a temp sibling and renamed into place, so a killed job never
// leaves a half-written entry behind.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at the given directory.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("cache store root dir is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// RootDir returns the store root.
func (s *LocalStore) RootDir() string {
	return s.root
}

// EntryDir returns the directory holding the entry for key.
func (s *LocalStore) EntryDir(key string) string {
	return filepath.Join(s.root, key)
}

// Prime restores the entry for key into dest.
func (s *LocalStore) Prime(ctx context.Context, key, dest string) error {
	entry := s.EntryDir(key)
	info, err := os.Stat(entry)
	if err != nil {
		if os.IsNotExist(err) {
			return &StoreError{Op: "Prime", Backend: "local", Key: key, Err: ErrCacheMiss}
		}
		return &StoreError{Op: "Prime", Backend: "local", Key: key, Err: err}
	}
	if !info.IsDir() {
		return &StoreError{Op: "Prime", Backend: "local", Key: key,
			Err: fmt.Errorf("entry is not a directory")}
	}

	if err := copyTree(ctx, entry, dest); err != nil {
		return &StoreError{Op: "Prime", Backend: "local", Key: key, Err: err}
	}
	return nil
}

// Save persists src as the entry for key, replacing any previous content.
func (s *LocalStore) Save(ctx context.Context, key, src string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			// Nothing to persist; a skipped plan may never create the dir.
			return nil
		}
		return &StoreError{Op: "Save", Backend: "local", Key: key, Err: err}
	}

	staging, err := os.MkdirTemp(s.root, key+".tmp.*")
	if err != nil {
		return &StoreError{Op: "Save", Backend: "local", Key: key, Err: err}
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := copyTree(ctx, src, staging); err != nil {
		return &StoreError{Op: "Save", Backend: "local", Key: key, Err: err}
	}

	final := s.EntryDir(key)
	if err := os.RemoveAll(final); err != nil {
		return &StoreError{Op: "Save", Backend: "local", Key: key, Err: err}
	}
	if err := os.Rename(staging, final); err != nil {
		return &StoreError{Op: "Save", Backend: "local", Key: key, Err: err}
	}
	return nil
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}

// copyTree copies the file tree at src into dest, creating dest if needed.
func copyTree(ctx context.Context, src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dest string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)
