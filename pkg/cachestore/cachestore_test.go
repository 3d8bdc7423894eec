package cachestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	lockA := filepath.Join(dir, "go.sum")
	lockB := filepath.Join(dir, "tools.sum")
	require.NoError(t, os.WriteFile(lockA, []byte("module abc v1.0.0\n"), 0o644))
	require.NoError(t, os.WriteFile(lockB, []byte("tool xyz v2.0.0\n"), 0o644))

	t.Run("deterministic", func(t *testing.T) {
		k1, err := Fingerprint("1.26.1", []string{lockA, lockB})
		require.NoError(t, err)
		k2, err := Fingerprint("1.26.1", []string{lockA, lockB})
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
		assert.Len(t, k1, 64)
	})

	t.Run("order insensitive", func(t *testing.T) {
		k1, err := Fingerprint("1.26.1", []string{lockA, lockB})
		require.NoError(t, err)
		k2, err := Fingerprint("1.26.1", []string{lockB, lockA})
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
	})

	t.Run("partitioned by channel", func(t *testing.T) {
		k1, err := Fingerprint("1.26.1", []string{lockA})
		require.NoError(t, err)
		k2, err := Fingerprint("nightly-2018-05-29", []string{lockA})
		require.NoError(t, err)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("content sensitive", func(t *testing.T) {
		k1, err := Fingerprint("1.26.1", []string{lockA})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(lockA, []byte("module abc v1.0.1\n"), 0o644))
		k2, err := Fingerprint("1.26.1", []string{lockA})
		require.NoError(t, err)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("missing lockfile hashes as absent", func(t *testing.T) {
		missing := filepath.Join(dir, "nonexistent.sum")
		k, err := Fingerprint("1.26.1", []string{missing})
		require.NoError(t, err)
		assert.Len(t, k, 64)
	})

	t.Run("empty channel rejected", func(t *testing.T) {
		_, err := Fingerprint("", nil)
		require.Error(t, err)
	})
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			rel, err := filepath.Rel(root, path)
			require.NoError(t, err)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestLocalStorePrimeMiss(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Prime(context.Background(), "deadbeef", t.TempDir())
	require.Error(t, err)
	assert.True(t, IsCacheMiss(err))

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Prime", se.Op)
	assert.Equal(t, "local", se.Backend)
}

func TestLocalStoreSaveAndPrime(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	src := t.TempDir()
	writeFiles(t, src, map[string]string{
		"registry/index/abc": "index data",
		"bin/tool":           "binary",
	})

	require.NoError(t, store.Save(context.Background(), "key1", src))

	dest := t.TempDir()
	require.NoError(t, store.Prime(context.Background(), "key1", dest))

	assert.ElementsMatch(t, []string{"registry/index/abc", "bin/tool"}, listFiles(t, dest))

	data, err := os.ReadFile(filepath.Join(dest, "registry", "index", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "index data", string(data))
}

func TestLocalStoreSaveReplacesEntry(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	src1 := t.TempDir()
	writeFiles(t, src1, map[string]string{"old/file": "v1"})
	require.NoError(t, store.Save(context.Background(), "k", src1))

	src2 := t.TempDir()
	writeFiles(t, src2, map[string]string{"new/file": "v2"})
	require.NoError(t, store.Save(context.Background(), "k", src2))

	dest := t.TempDir()
	require.NoError(t, store.Prime(context.Background(), "k", dest))
	assert.Equal(t, []string{"new/file"}, listFiles(t, dest))
}

func TestLocalStoreSaveMissingSrcIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), "k", filepath.Join(t.TempDir(), "never-created")))

	err = store.Prime(context.Background(), "k", t.TempDir())
	assert.True(t, IsCacheMiss(err))
}

func TestPruneDirRetainGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"registry/index/abc": "keep",
		"registry/src/pkg":   "keep",
		"bin/tool":           "keep",
		"tmp/scratch":        "trim",
		"build/partial.o":    "trim",
	})

	result, err := PruneDir(dir, PrunePolicy{Retain: []string{"registry/**", "bin/*"}}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesRemoved)
	assert.Equal(t, 3, result.FilesKept)
	assert.Greater(t, result.BytesFreed, int64(0))
	assert.ElementsMatch(t,
		[]string{"registry/index/abc", "registry/src/pkg", "bin/tool"},
		listFiles(t, dir))

	// Emptied directories are collapsed.
	_, err = os.Stat(filepath.Join(dir, "tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestPruneDirMaxIdleAge(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"fresh": "keep",
		"stale": "trim",
	})

	stalePath := filepath.Join(dir, "stale")
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stalePath, old, old))

	result, err := PruneDir(dir, PrunePolicy{MaxIdleAge: 24 * time.Hour}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesRemoved)
	assert.Equal(t, []string{"fresh"}, listFiles(t, dir))
}

func TestPruneDirEmptyPolicyRetainsEverything(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a": "1", "b/c": "2"})

	result, err := PruneDir(dir, PrunePolicy{}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, result.FilesRemoved)
	assert.Equal(t, 2, result.FilesKept)
}

func TestPruneDirMissingDirIsNoop(t *testing.T) {
	result, err := PruneDir(filepath.Join(t.TempDir(), "never"), PrunePolicy{}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, result.FilesRemoved)
}

func TestPruneDirInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a": "1"})

	_, err := PruneDir(dir, PrunePolicy{Retain: []string{"[invalid"}}, time.Now())
	require.Error(t, err)
}

func TestLeaseReleaseRunsOnce(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"registry/dep": "data", "tmp/junk": "x"})

	lease := Acquire(ctx, store, "key1", dir, PrunePolicy{Retain: []string{"registry/**"}}, log)
	assert.False(t, lease.Primed)

	result := lease.Release(ctx)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.FilesRemoved)

	// Second release is a no-op.
	assert.Nil(t, lease.Release(ctx))

	// The pruned entry was persisted.
	dest := t.TempDir()
	require.NoError(t, store.Prime(ctx, "key1", dest))
	assert.Equal(t, []string{"registry/dep"}, listFiles(t, dest))
}

func TestLeasePrimedOnSecondRun(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	dir1 := t.TempDir()
	writeFiles(t, dir1, map[string]string{"registry/dep": "data"})
	lease1 := Acquire(ctx, store, "k", dir1, PrunePolicy{}, log)
	assert.False(t, lease1.Primed)
	lease1.Release(ctx)

	dir2 := t.TempDir()
	lease2 := Acquire(ctx, store, "k", dir2, PrunePolicy{}, log)
	assert.True(t, lease2.Primed)
	assert.Equal(t, []string{"registry/dep"}, listFiles(t, dir2))
	lease2.Release(ctx)
}
