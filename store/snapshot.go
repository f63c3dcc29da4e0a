package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Load when no snapshot exists under a key.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore persists opaque blobs under string keys. The embedding index
// uses it to survive restarts without re-embedding the whole graph.
type SnapshotStore interface {
	// Save replaces the blob stored under key
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the blob stored under key, or ErrNotFound
	Load(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether key holds a blob
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Close releases the backend connection
	Close() error
}

// ValidateKey rejects keys that cannot be mapped onto every backend.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("snapshot key must not be empty")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("invalid snapshot key %q", key)
	}
	return nil
}
