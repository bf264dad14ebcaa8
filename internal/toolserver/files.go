package toolserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func (t *tools) fileContext() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("read_file",
				mcp.WithDescription("Read a file from the repository. Large files are truncated."),
				mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the repository root")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.readFile,
		},
		{
			Tool: mcp.NewTool("list_files",
				mcp.WithDescription("List the entries of a repository directory. Directories end in a slash."),
				mcp.WithString("dir", mcp.Description("Directory relative to the repository root (default: root)")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.listFiles,
		},
	}
}

func (t *tools) readFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	abs, rel, err := t.root.Resolve(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := os.Stat(abs)
	if err != nil {
		return toolError("cannot read %s: file not found", rel), nil
	}
	if info.IsDir() {
		return toolError("%s is a directory; use list_files", rel), nil
	}

	f, err := os.Open(abs)
	if err != nil {
		return toolError("cannot read %s: %v", rel, err), nil
	}
	defer f.Close()

	limit := t.opts.MaxReadBytes
	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return toolError("cannot read %s: %v", rel, err), nil
	}
	if isBinary(data) {
		return toolError("%s is a binary file", rel), nil
	}
	if len(data) > limit {
		return mcp.NewToolResultText(string(data[:limit]) + fmt.Sprintf("\n... [truncated at %d bytes]", limit)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *tools) listFiles(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	abs, rel, err := t.root.Resolve(req.GetString("dir", "."))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return toolError("cannot list %s: %v", rel, err), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if name == ".git" {
				continue
			}
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("%s is empty", rel)), nil
	}

	var b strings.Builder
	for i, name := range names {
		if i == t.opts.MaxEntries {
			fmt.Fprintf(&b, "... %d more entries\n", len(names)-i)
			break
		}
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}

func isBinary(data []byte) bool {
	if len(data) > binarySniffBytes {
		data = data[:binarySniffBytes]
	}
	return bytes.IndexByte(data, 0) >= 0
}
