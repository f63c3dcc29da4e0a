// Package log provides the leveled logging interface used across kgqa.
//
// Every component takes a Logger; a nil Logger falls back to the package-level
// default, which can be swapped at runtime with SetDefaultLogger.
//
// # Log Levels
//
//   - LogLevelDebug: extracted mentions, matches, issued Cypher
//   - LogLevelInfo: refreshes, ingestion, request summaries
//   - LogLevelWarn: degraded paths (extraction misses, tier fallbacks)
//   - LogLevelError: store faults and failed model calls
//   - LogLevelNone: silence
//
// # Implementations
//
// DefaultLogger wraps the standard library logger and is handy in tests:
//
//	logger := log.NewCustomLogger(&buf, log.LogLevelDebug)
//
// GologLogger wraps github.com/kataras/golog and is what the kgqa binary
// installs:
//
//	logger := log.NewServiceLogger(os.Stderr, log.LogLevelInfo)
//	log.SetDefaultLogger(logger)
//
// NoOpLogger discards everything.
package log
