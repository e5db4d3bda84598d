// Package cache stores encoded compositing results on disk so repeating an
// identical render skips the engine entirely.
//
// Payloads live as files under the cache directory; a SQLite index keyed by
// a digest of the source bytes, overlay set, and natural dimensions tracks
// size and recency for pruning. A file lock serializes writers across
// processes sharing one cache directory.
package cache
