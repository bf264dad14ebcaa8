// mcp-review-server serves one bundled MCP toolset over stdio.
//
// Usage:
//
//	mcp-review-server <toolset> [--root dir]
//
// Toolsets: file-context, git-history, import-graph, lint-config.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ethanasm/mcp-review/internal/toolserver"
)

var version = "0.1.0"

func main() {
	var (
		root         string
		maxReadBytes int
		verbose      bool
	)
	cmd := &cobra.Command{
		Use:           "mcp-review-server <toolset>",
		Short:         "Serve an mcp-review toolset over stdio",
		Long:          "Serve one MCP toolset on stdin and stdout. Toolsets: " + strings.Join(toolserver.Toolsets(), ", ") + ".",
		Args:          cobra.ExactArgs(1),
		ValidArgs:     toolserver.Toolsets(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			// stdout carries the protocol, so logs go to stderr.
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return toolserver.Serve(args[0], toolserver.Options{
				Root:         root,
				Version:      version,
				MaxReadBytes: maxReadBytes,
				Logger:       log.With("toolset", args[0]),
			})
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "Repository root every path is resolved against")
	cmd.Flags().IntVar(&maxReadBytes, "max-read-bytes", toolserver.DefaultMaxReadBytes, "Byte cap for read_file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every tool call to stderr")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
