package cachestore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// fingerprintPayload is the canonical form hashed into a cache key.
//
// Lockfiles are keyed by path with their content digests; absent files hash
// as an explicit marker so a fresh checkout and a checkout with an empty
// lockfile produce different keys.
type fingerprintPayload struct {
	Channel   string            `json:"channel"`
	Lockfiles map[string]string `json:"lockfiles,omitempty"`
}

const absentDigest = "absent"

// Fingerprint computes the cache key for a toolchain channel and a set of
// lockfiles.
//
// The key is a hex sha256 over a canonical JSON payload: deterministic,
// order-insensitive over the lockfile set, and partitioned per channel so
// concurrent matrix jobs never contend for one entry.
func Fingerprint(channel string, lockfiles []string) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "", fmt.Errorf("fingerprint: channel is required")
	}

	payload := fingerprintPayload{Channel: channel}
	if len(lockfiles) > 0 {
		payload.Lockfiles = make(map[string]string, len(lockfiles))
		// Sort for stable iteration when duplicates collapse.
		paths := append([]string(nil), lockfiles...)
		sort.Strings(paths)
		for _, path := range paths {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			digest, err := digestFile(path)
			if err != nil {
				return "", fmt.Errorf("fingerprint %s: %w", path, err)
			}
			payload.Lockfiles[path] = digest
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal fingerprint payload: %w", err)
	}

	sha := sha256.Sum256(b)
	return hex.EncodeToString(sha[:]), nil
}

func digestFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return absentDigest, nil
		}
		return "", err
	}
	sha := sha256.Sum256(data)
	return hex.EncodeToString(sha[:]), nil
}
