// Package config loads and merges mcp-review configuration from multiple
// sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (MCP_REVIEW_PROVIDER, MCP_REVIEW_MODEL, MCP_REVIEW_FORMAT, etc.)
//  3. Project file (.mcp-review.yml in the working directory)
//  4. User file ($XDG_CONFIG_HOME/mcp-review/config.yml)
//  5. Built-in defaults
//
// Files are YAML. Each file is decoded on top of the layers below it, so a
// key absent from a file keeps its lower-precedence value; lists such as
// servers or focus replace the lower value as a whole.
//
// Use [Load] to obtain a merged [Config], [Save] to write the user file, and
// [SetField] to update a single key.
package config
