// Package store persists opaque snapshots, most notably the encoded
// embedding index, so a restart can restore it without recomputing
// embeddings.
//
// Backends live in subpackages and all satisfy SnapshotStore:
//   - file: one file per key inside a directory (default)
//   - memory: process-local map, for tests and ephemeral runs
//   - redis: a string key per snapshot
//   - sqlite: a single table in a local database file
//   - postgres: a single table reached through a pgx pool
//
// Keys are short identifiers such as "graph-index" or "documents-index";
// see ValidateKey.
package store
