// Package cachestore implements the dependency cache lifecycle for matrix
// jobs: prime before the plan runs, prune and persist after it finishes.
//
// The store is keyed by a toolchain-dependency fingerprint so concurrent
// jobs on different toolchains never contend for the same entry. A prime
// miss is a cold start, not an error. Prune runs on every exit path via the
// scoped bracket, including plan failure.
package cachestore

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for cache operations.
var (
	// ErrCacheMiss indicates no cache entry exists for the key.
	// Non-fatal: callers log it and continue with a cold cache.
	ErrCacheMiss = errors.New("cache entry not found")

	// ErrStoreUnavailable indicates the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("cache store unavailable")

	// ErrAccessDenied indicates insufficient permissions on the store.
	ErrAccessDenied = errors.New("cache store access denied")
)

// IsCacheMiss returns true if the error indicates a missing cache entry.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// StoreError wraps backend errors with operation context.
type StoreError struct {
	// Op is the operation that failed (e.g., "Prime", "Save").
	Op string

	// Backend is the store backend ("local", "s3").
	Backend string

	// Key is the cache fingerprint key.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("cache %s (%s): %s: %v", e.Op, e.Backend, e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store persists cache entries keyed by dependency fingerprint.
//
// Implementations must tolerate concurrent jobs using different keys; two
// jobs never share a key by construction (the key embeds the toolchain
// channel).
type Store interface {
	// Prime restores the entry for key into the dest directory.
	// Returns ErrCacheMiss (wrapped) when no entry exists.
	Prime(ctx context.Context, key, dest string) error

	// Save persists the src directory as the entry for key, replacing any
	// previous entry content.
	Save(ctx context.Context, key, src string) error

	// Close releases any resources held by the store.
	Close() error
}
