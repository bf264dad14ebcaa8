package toolserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func toolset(t *testing.T, name string, opts Options) map[string]server.ServerTool {
	t.Helper()
	list, err := Tools(name, opts)
	if err != nil {
		t.Fatalf("Tools(%q): %v", name, err)
	}
	out := make(map[string]server.ServerTool, len(list))
	for _, st := range list {
		out[st.Tool.Name] = st
	}
	return out
}

// call runs one tool handler and returns its text and error flag.
func call(t *testing.T, tools map[string]server.ServerTool, name string, args map[string]any) (string, bool) {
	t.Helper()
	st, ok := tools[name]
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := st.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: handler error: %v", name, err)
	}
	var parts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n"), res.IsError
}
