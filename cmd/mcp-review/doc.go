// mcp-review is a CLI that reviews git changes with an LLM provider.
//
// The model answers from the diff and may call bundled MCP tool servers
// (file contents, git history, import search, lint configuration) before it
// writes the review. Exit codes are deterministic for CI gating and git hooks.
//
// Usage:
//
//	mcp-review review                    # review HEAD~1..HEAD
//	mcp-review review origin/main..HEAD  # review a revision range
//	mcp-review review --staged           # review staged changes
//	mcp-review providers list            # show provider shortcuts
//	mcp-review hook install              # add a pre-push hook
package main
