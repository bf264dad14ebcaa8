// Package toolserver implements the bundled MCP tool servers.
//
// A single binary serves one toolset per process over stdio:
//
//	file-context   read_file, list_files
//	git-history    get_diff, get_file_history
//	import-graph   search_imports
//	lint-config    find_lint_config
//
// Every path argument is resolved inside the server's root directory and
// rejected if it escapes it, symlinks included. Failures are reported as tool
// results with isError set, never as protocol errors.
package toolserver
