package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethanasm/mcp-review/internal/output"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var flagVerbose bool

// logger is replaced by the root command's PersistentPreRun.
var logger = newLogger(os.Stderr, false)

var rootCmd = &cobra.Command{
	Use:   "mcp-review",
	Short: "AI code review over MCP tool servers",
	Long: "mcp-review reviews git changes with an LLM provider. The model can call " +
		"bundled MCP tool servers to read files, history and lint configuration " +
		"before it answers.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(os.Stderr, flagVerbose)
		slog.SetDefault(logger)
	},
}

// Run executes the root command and returns an exit code.
func Run() int {
	output.ToolVersion = version

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print mcp-review version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mcp-review version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose logging to stderr")
}
