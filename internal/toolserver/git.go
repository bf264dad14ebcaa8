package toolserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ethanasm/mcp-review/internal/gitctx"
)

func (t *tools) gitHistory() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("get_diff",
				mcp.WithDescription("Show the diff of one file between two revisions."),
				mcp.WithString("path", mcp.Required(), mcp.Description("File path relative to the repository root")),
				mcp.WithString("from", mcp.Description("Base revision (default HEAD~1)")),
				mcp.WithString("to", mcp.Description("Target revision (default HEAD)")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.getDiff,
		},
		{
			Tool: mcp.NewTool("get_file_history",
				mcp.WithDescription("List the most recent commits that touched a file, newest first."),
				mcp.WithString("path", mcp.Required(), mcp.Description("File path relative to the repository root")),
				mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum commits (default %d, max %d)", defaultHistoryLimit, maxHistoryLimit))),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.getFileHistory,
		},
	}
}

func (t *tools) repo() gitctx.Repo { return gitctx.Open(t.root.Dir()) }

func (t *tools) getDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, rel, err := t.root.Resolve(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from := req.GetString("from", "HEAD~1")
	to := req.GetString("to", "HEAD")
	if strings.HasPrefix(from, "-") || strings.HasPrefix(to, "-") {
		return toolError("invalid revision"), nil
	}

	diff, err := t.repo().GetDiff(ctx, from, to, gitctx.DiffOptions{Paths: []string{rel}})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(diff) == "" {
		return mcp.NewToolResultText(fmt.Sprintf("No changes to %s between %s and %s.", rel, from, to)), nil
	}
	return mcp.NewToolResultText(diff), nil
}

func (t *tools) getFileHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, rel, err := t.root.Resolve(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	commits, err := t.repo().FileHistory(ctx, rel, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(commits) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No commits touch %s.", rel)), nil
	}

	var b strings.Builder
	for _, c := range commits {
		sha := c.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		fmt.Fprintf(&b, "%s %s\n", sha, c.Subject)
	}
	return mcp.NewToolResultText(b.String()), nil
}
