package cachestore

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Lease is a scoped acquisition of the cache resource for one job run.
//
// Acquire primes the cache; the returned Lease's Release prunes the
// workspace directory and persists the entry. Callers defer Release
// immediately after Acquire so the prune runs on every exit path, plan
// failure and tool-install failure included. Release is idempotent.
type Lease struct {
	store  Store
	key    string
	dir    string
	policy PrunePolicy
	log    *zap.Logger

	// Primed reports whether priming found an entry.
	Primed bool

	released bool
}

// Acquire primes the cache entry for key into dir and returns the lease.
//
// A cache miss is not an error: the lease is returned with Primed false and
// the job proceeds from a cold start. Any other prime error is also
// degraded to a cold start, since the cache is a performance aid and never a
// correctness input, but is logged at warn rather than info.
func Acquire(ctx context.Context, store Store, key, dir string, policy PrunePolicy, log *zap.Logger) *Lease {
	lease := &Lease{store: store, key: key, dir: dir, policy: policy, log: log}

	err := store.Prime(ctx, key, dir)
	switch {
	case err == nil:
		lease.Primed = true
		log.Info("cache primed", zap.String("key", key))
	case IsCacheMiss(err):
		log.Info("cache miss, cold start", zap.String("key", key))
	default:
		log.Warn("cache prime failed, cold start", zap.String("key", key), zap.Error(err))
	}

	return lease
}

// Release prunes the workspace cache directory and persists the entry.
//
// Errors are logged, not returned: prune is best-effort hygiene on the
// host-owned cache blob and must never change the job's pass/fail outcome.
// Returns the prune result, or nil if this lease was already released.
func (l *Lease) Release(ctx context.Context) *PruneResult {
	if l.released {
		return nil
	}
	l.released = true

	result, err := PruneDir(l.dir, l.policy, time.Now())
	if err != nil {
		l.log.Warn("cache prune failed", zap.String("key", l.key), zap.Error(err))
		return nil
	}
	l.log.Info("cache pruned",
		zap.String("key", l.key),
		zap.Int("files_removed", result.FilesRemoved),
		zap.Int("files_kept", result.FilesKept),
		zap.Int64("bytes_freed", result.BytesFreed))

	if err := l.store.Save(ctx, l.key, l.dir); err != nil {
		l.log.Warn("cache save failed", zap.String("key", l.key), zap.Error(err))
	}

	return result
}
