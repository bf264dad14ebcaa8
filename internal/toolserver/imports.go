package toolserver

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// importLine matches single-line import statements across the common
// languages. Go import blocks are tracked separately.
var importLine = regexp.MustCompile(`^\s*(import\b|from\s+\S+\s+import\b|use\s+\S|#include\b|require\b|@import\b)|\brequire\(\s*['"]|\bimport\(\s*['"]`)

var sourceExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".mjs": true, ".cjs": true, ".rs": true, ".java": true, ".kt": true, ".rb": true,
	".c": true, ".h": true, ".cc": true, ".cpp": true, ".hpp": true, ".cs": true,
	".php": true, ".swift": true, ".scala": true, ".css": true, ".scss": true,
}

func (t *tools) importGraph() []server.ServerTool {
	return []server.ServerTool{{
		Tool: mcp.NewTool("search_imports",
			mcp.WithDescription("Find import or require statements that mention a module or path. Use it to see which files depend on a changed package."),
			mcp.WithString("pattern", mcp.Required(), mcp.Description("Substring to look for in import statements, for example a package path")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		Handler: t.searchImports,
	}}
}

func (t *tools) searchImports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return toolError("pattern must not be empty"), nil
	}

	var matches []string
	more := 0
	root := t.root.Dir()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		for _, m := range scanImports(path, pattern) {
			if len(matches) >= t.opts.MaxMatches {
				more++
				continue
			}
			matches = append(matches, fmt.Sprintf("%s:%d: %s", filepath.ToSlash(rel), m.line, m.text))
		}
		return nil
	})
	if err != nil {
		return toolError("search interrupted: %v", err), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No imports matching %q.", pattern)), nil
	}

	out := strings.Join(matches, "\n") + "\n"
	if more > 0 {
		out += fmt.Sprintf("... %d more matches\n", more)
	}
	return mcp.NewToolResultText(out), nil
}

type importMatch struct {
	line int
	text string
}

func scanImports(path, pattern string) []importMatch {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	goFile := strings.HasSuffix(path, ".go")
	inBlock := false
	var out []importMatch
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		isImport := false
		switch {
		case goFile && inBlock:
			if strings.HasPrefix(trimmed, ")") {
				inBlock = false
				continue
			}
			isImport = true
		case goFile && strings.HasPrefix(trimmed, "import ("):
			inBlock = true
			continue
		default:
			isImport = importLine.MatchString(line)
		}
		if isImport && strings.Contains(line, pattern) {
			out = append(out, importMatch{line: n, text: trimmed})
		}
	}
	return out
}
