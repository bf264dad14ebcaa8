package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	hookName        = "pre-push"
	hookMarkerStart = "# >>> mcp-review pre-push hook >>>"
	hookMarkerEnd   = "# <<< mcp-review pre-push hook <<<"
)

// hookBody reviews the commits being pushed: everything ahead of the
// upstream branch, or the last commit when there is no upstream. Exit 1
// blocks the push; any other failure lets it through with a warning.
const hookBody = `MCP_REVIEW_RANGE=HEAD~1..HEAD
if upstream=$(git rev-parse --abbrev-ref --symbolic-full-name '@{upstream}' 2>/dev/null); then
  MCP_REVIEW_RANGE="$upstream..HEAD"
fi
mcp-review review "$MCP_REVIEW_RANGE" --fail-on-critical --format %s
MCP_REVIEW_EXIT=$?
if [ $MCP_REVIEW_EXIT -eq 1 ]; then
  echo "mcp-review: critical issues found, push blocked"
  exit 1
elif [ $MCP_REVIEW_EXIT -ge 2 ]; then
  echo "mcp-review: review failed (exit $MCP_REVIEW_EXIT), allowing push"
fi
`

var hookFormat string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Install or remove the git " + hookName + " hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Review outgoing commits before every push",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, existing, err := readHook()
		if err != nil {
			return hookFailed(err)
		}

		section := generateHookScript(hookFormat)
		content := "#!/bin/sh\n" + section
		if strings.TrimSpace(existing) != "" {
			content = replaceHookSection(existing, section)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return hookFailed(fmt.Errorf("creating hooks directory: %w", err))
		}
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			return hookFailed(fmt.Errorf("writing %s: %w", path, err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed mcp-review %s hook at %s\n", hookName, path)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the mcp-review section from the " + hookName + " hook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, existing, err := readHook()
		if err != nil {
			return hookFailed(err)
		}
		out := cmd.OutOrStdout()
		if !strings.Contains(existing, hookMarkerStart) {
			fmt.Fprintf(out, "No mcp-review %s hook found.\n", hookName)
			return nil
		}

		content := removeHookSection(existing)
		if onlyShebang(content) {
			if err := os.Remove(path); err != nil {
				return hookFailed(fmt.Errorf("removing %s: %w", path, err))
			}
			fmt.Fprintf(out, "Removed mcp-review %s hook at %s\n", hookName, path)
			return nil
		}
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			return hookFailed(fmt.Errorf("writing %s: %w", path, err))
		}
		fmt.Fprintf(out, "Removed mcp-review section from %s\n", path)
		return nil
	},
}

var hookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the hook is installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, existing, err := readHook()
		if err != nil {
			return hookFailed(err)
		}
		if strings.Contains(existing, hookMarkerStart) {
			fmt.Fprintf(cmd.OutOrStdout(), "Installed at %s\n", path)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Not installed.")
		}
		return nil
	},
}

// hookFailed reports err the way every hook subcommand does.
func hookFailed(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitCode = ExitRuntimeError
	return nil
}

// readHook locates the hook file and returns its contents, which are empty
// when the file does not exist yet.
func readHook() (string, string, error) {
	path, err := getHookPath()
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return path, string(data), nil
}

func getHookPath() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", errors.New("not a git repository (git rev-parse --git-path failed)")
	}
	return filepath.Join(strings.TrimSpace(string(out)), hookName), nil
}

func onlyShebang(content string) bool {
	switch strings.TrimSpace(content) {
	case "", "#!/bin/sh", "#!/bin/bash", "#!/usr/bin/env sh", "#!/usr/bin/env bash":
		return true
	}
	return false
}

func generateHookScript(format string) string {
	return hookMarkerStart + "\n" + fmt.Sprintf(hookBody, format) + hookMarkerEnd + "\n"
}

// hookSection returns the byte range of the marked section, or ok=false.
func hookSection(s string) (start, end int, ok bool) {
	start = strings.Index(s, hookMarkerStart)
	if start < 0 {
		return 0, 0, false
	}
	rel := strings.Index(s[start:], hookMarkerEnd)
	if rel < 0 {
		return 0, 0, false
	}
	end = start + rel + len(hookMarkerEnd)
	if end < len(s) && s[end] == '\n' {
		end++
	}
	return start, end, true
}

// replaceHookSection swaps the marked section for section, or appends it.
func replaceHookSection(existing, section string) string {
	start, end, ok := hookSection(existing)
	if !ok {
		if existing != "" && !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	return existing[:start] + section + existing[end:]
}

func removeHookSection(existing string) string {
	start, end, ok := hookSection(existing)
	if !ok {
		return existing
	}
	return existing[:start] + existing[end:]
}

func init() {
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "output format of the review run by the hook")
	hookCmd.AddCommand(hookInstallCmd, hookUninstallCmd, hookStatusCmd)
}
