package toolserver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// lintConfigFiles are checked at the repository root, in this order.
var lintConfigFiles = []string{
	".golangci.yml", ".golangci.yaml", ".golangci.toml", ".golangci.json",
	".eslintrc", ".eslintrc.js", ".eslintrc.cjs", ".eslintrc.json", ".eslintrc.yml", ".eslintrc.yaml",
	"eslint.config.js", "eslint.config.mjs", "eslint.config.cjs", "eslint.config.ts",
	".prettierrc", ".prettierrc.json", ".prettierrc.yml", ".prettierrc.yaml", "prettier.config.js",
	"biome.json", "tsconfig.json", ".stylelintrc", ".stylelintrc.json",
	"pyproject.toml", "setup.cfg", ".flake8", "ruff.toml", ".ruff.toml", ".pylintrc", "mypy.ini",
	".rubocop.yml", "rustfmt.toml", ".rustfmt.toml", "clippy.toml",
	".clang-format", ".clang-tidy", ".editorconfig", ".markdownlint.json", ".yamllint",
}

func (t *tools) lintConfig() []server.ServerTool {
	return []server.ServerTool{{
		Tool: mcp.NewTool("find_lint_config",
			mcp.WithDescription("List the lint and formatter configuration files in the repository root with the first lines of each."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		Handler: t.findLintConfig,
	}}
}

func (t *tools) findLintConfig(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	found := 0
	for _, name := range lintConfigFiles {
		abs, rel, err := t.root.Resolve(name)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		excerpt, more, err := headLines(abs, lintExcerptLines)
		if err != nil {
			continue
		}
		found++
		fmt.Fprintf(&b, "--- %s ---\n%s", rel, excerpt)
		if more {
			b.WriteString("...\n")
		}
		b.WriteByte('\n')
	}
	if found == 0 {
		return mcp.NewToolResultText("No lint configuration files found."), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

// headLines returns the first n lines of path and whether more follow.
func headLines(path string, n int) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	var b strings.Builder
	sc := bufio.NewScanner(f)
	for i := 0; sc.Scan(); i++ {
		if i == n {
			return b.String(), true, nil
		}
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	return b.String(), false, sc.Err()
}
