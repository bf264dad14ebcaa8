// Package cli holds the Cobra command tree of the mcp-review binary: review,
// config, providers, cache, hook and version.
//
// [Run] executes the tree and returns the process exit code. Codes are stable
// so that CI jobs and git hooks can gate on them.
package cli
