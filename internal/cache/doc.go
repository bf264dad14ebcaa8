// Package cache provides a file-based cache for finished reviews.
//
// Entries are keyed by a SHA-256 hash of the model, the configuration fields
// that change what a review says (focus, rules, round and size limits,
// provider selection), and the diff. Each entry stores the review result as
// JSON with a creation timestamp; entries older than the TTL are treated as
// misses and removed.
//
// The default cache directory is $XDG_CACHE_HOME/mcp-review (or the
// OS-appropriate equivalent). Diffs are hashed, never stored.
package cache
