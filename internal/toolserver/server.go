package toolserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Toolset names.
const (
	FileContext = "file-context"
	GitHistory  = "git-history"
	ImportGraph = "import-graph"
	LintConfig  = "lint-config"
)

// Defaults for Options.
const (
	DefaultMaxReadBytes = 64 * 1024
	DefaultMaxEntries   = 500
	DefaultMaxMatches   = 200
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
	lintExcerptLines    = 20
	binarySniffBytes    = 8000
	serverNamePrefix    = "mcp-review-"
)

// Options configures a tool server.
type Options struct {
	// Root is the directory every path is resolved against.
	Root         string
	Version      string
	MaxReadBytes int
	MaxEntries   int
	MaxMatches   int
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.MaxReadBytes <= 0 {
		o.MaxReadBytes = DefaultMaxReadBytes
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.MaxMatches <= 0 {
		o.MaxMatches = DefaultMaxMatches
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Toolsets returns the known toolset names, sorted.
func Toolsets() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type tools struct {
	root Root
	opts Options
}

var builders = map[string]func(t *tools) []server.ServerTool{
	FileContext: (*tools).fileContext,
	GitHistory:  (*tools).gitHistory,
	ImportGraph: (*tools).importGraph,
	LintConfig:  (*tools).lintConfig,
}

// Tools returns the tool definitions and handlers of toolset.
func Tools(toolset string, opts Options) ([]server.ServerTool, error) {
	build, ok := builders[toolset]
	if !ok {
		return nil, fmt.Errorf("unknown toolset %q (available: %s)", toolset, strings.Join(Toolsets(), ", "))
	}
	opts = opts.withDefaults()
	root, err := NewRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	t := &tools{root: root, opts: opts}
	out := build(t)
	for i := range out {
		out[i].Handler = t.logged(out[i].Tool.Name, out[i].Handler)
	}
	return out, nil
}

// New builds an MCP server exposing toolset.
func New(toolset string, opts Options) (*server.MCPServer, error) {
	st, err := Tools(toolset, opts)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	s := server.NewMCPServer(
		serverNamePrefix+toolset,
		opts.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTools(st...)
	return s, nil
}

// Serve runs toolset on stdin and stdout until the client disconnects.
func Serve(toolset string, opts Options) error {
	s, err := New(toolset, opts)
	if err != nil {
		return err
	}
	return server.ServeStdio(s)
}

func (t *tools) logged(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := h(ctx, req)
		attrs := []any{"tool", name, "duration", time.Since(start)}
		switch {
		case err != nil:
			t.opts.Logger.Warn("tool failed", append(attrs, "error", err)...)
		case res != nil && res.IsError:
			t.opts.Logger.Debug("tool returned error result", attrs...)
		default:
			t.opts.Logger.Debug("tool call", attrs...)
		}
		return res, err
	}
}

// toolError reports err to the caller as an error result.
func toolError(format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...))
}
