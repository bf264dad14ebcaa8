package gitctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	ContextLines int
	// Paths limits the diff to these pathspecs.
	Paths []string
}

// FileStat is the change count of one file.
type FileStat struct {
	Path       string `json:"path"`
	Insertions int    `json:"insertions"`
	Deletions  int    `json:"deletions"`
	Binary     bool   `json:"binary,omitempty"`
}

// DiffStats summarises a diff.
type DiffStats struct {
	FilesChanged int        `json:"filesChanged"`
	Insertions   int        `json:"insertions"`
	Deletions    int        `json:"deletions"`
	Files        []FileStat `json:"files,omitempty"`
}

// Paths returns the changed file paths in diff order.
func (s DiffStats) Paths() []string {
	out := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f.Path)
	}
	return out
}

// CommitInfo holds a commit SHA and its message.
type CommitInfo struct {
	SHA     string `json:"sha"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

// Repo runs git in Dir. An empty Dir means the current working directory.
type Repo struct {
	Dir string
}

// Open returns a Repo rooted at dir.
func Open(dir string) Repo { return Repo{Dir: dir} }

// Root returns the top-level directory of the work tree.
func (r Repo) Root(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GetDiff returns the diff between two revisions.
func (r Repo) GetDiff(ctx context.Context, from, to string, opts DiffOptions) (string, error) {
	args := append([]string{"diff", "--no-color", "--no-ext-diff"}, contextArg(opts)...)
	args = append(args, revArgs(from, to)...)
	args = append(args, pathArgs(opts.Paths)...)
	out, err := r.git(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("git diff %s: %w", rangeLabel(from, to), err)
	}
	return out, nil
}

// GetDiffStats returns per-file counts between two revisions.
func (r Repo) GetDiffStats(ctx context.Context, from, to string) (DiffStats, error) {
	args := append([]string{"diff", "--numstat"}, revArgs(from, to)...)
	out, err := r.git(ctx, args...)
	if err != nil {
		return DiffStats{}, fmt.Errorf("git diff --numstat %s: %w", rangeLabel(from, to), err)
	}
	return ParseNumstat(out), nil
}

// GetStagedDiff returns the diff of the index against HEAD.
func (r Repo) GetStagedDiff(ctx context.Context, opts DiffOptions) (string, error) {
	args := append([]string{"diff", "--cached", "--no-color", "--no-ext-diff"}, contextArg(opts)...)
	args = append(args, pathArgs(opts.Paths)...)
	out, err := r.git(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("git diff --cached: %w", err)
	}
	return out, nil
}

// GetStagedDiffStats returns per-file counts of the index against HEAD.
func (r Repo) GetStagedDiffStats(ctx context.Context) (DiffStats, error) {
	out, err := r.git(ctx, "diff", "--cached", "--numstat")
	if err != nil {
		return DiffStats{}, fmt.Errorf("git diff --cached --numstat: %w", err)
	}
	return ParseNumstat(out), nil
}

// GetCommitMessages returns the commits in from..to, oldest first.
func (r Repo) GetCommitMessages(ctx context.Context, from, to string) ([]CommitInfo, error) {
	if to == "" {
		to = "HEAD"
	}
	rev := to
	if from != "" {
		rev = from + ".." + to
	}
	out, err := r.git(ctx, "log", "--reverse", "--format=%H%x00%s%x00%b%x1e", rev)
	if err != nil {
		return nil, fmt.Errorf("git log %s: %w", rev, err)
	}
	return parseLog(out), nil
}

// FileHistory returns the most recent commits touching path, newest first.
func (r Repo) FileHistory(ctx context.Context, path string, limit int) ([]CommitInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	out, err := r.git(ctx, "log", "-n", strconv.Itoa(limit), "--format=%H%x00%s%x00%b%x1e", "--", path)
	if err != nil {
		return nil, fmt.Errorf("git log %s: %w", path, err)
	}
	return parseLog(out), nil
}

func parseLog(out string) []CommitInfo {
	var commits []CommitInfo
	for _, rec := range strings.Split(out, "\x1e") {
		rec = strings.TrimLeft(rec, "\n")
		if strings.TrimSpace(rec) == "" {
			continue
		}
		parts := strings.SplitN(rec, "\x00", 3)
		c := CommitInfo{SHA: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			c.Subject = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			c.Body = strings.TrimSpace(parts[2])
		}
		commits = append(commits, c)
	}
	return commits
}

// ParseNumstat parses `git diff --numstat` output. Binary files report "-"
// for both counts.
func ParseNumstat(out string) DiffStats {
	var s DiffStats
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimRight(line, "\r"), "\t", 3)
		if len(fields) != 3 {
			continue
		}
		f := FileStat{Path: renamedPath(fields[2])}
		if fields[0] == "-" && fields[1] == "-" {
			f.Binary = true
		} else {
			f.Insertions, _ = strconv.Atoi(fields[0])
			f.Deletions, _ = strconv.Atoi(fields[1])
		}
		s.Files = append(s.Files, f)
		s.Insertions += f.Insertions
		s.Deletions += f.Deletions
	}
	s.FilesChanged = len(s.Files)
	return s
}

// renamedPath turns numstat rename notation into the new path:
// "old => new" and "dir/{old => new}/file".
func renamedPath(p string) string {
	if !strings.Contains(p, " => ") {
		return p
	}
	if i := strings.Index(p, "{"); i >= 0 {
		if j := strings.Index(p[i:], "}"); j >= 0 {
			inner := p[i+1 : i+j]
			parts := strings.SplitN(inner, " => ", 2)
			joined := p[:i] + parts[len(parts)-1] + p[i+j+1:]
			return strings.ReplaceAll(joined, "//", "/")
		}
	}
	parts := strings.SplitN(p, " => ", 2)
	return parts[1]
}

// ParseRange splits "from..to" into its revisions. A single revision means
// "from that revision to HEAD". Three-dot ranges are rejected.
func ParseRange(s string) (from, to string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", errors.New("empty range")
	}
	if strings.Contains(s, "...") {
		return "", "", fmt.Errorf("range %q: use from..to", s)
	}
	if !strings.Contains(s, "..") {
		return s, "HEAD", nil
	}
	parts := strings.SplitN(s, "..", 2)
	from, to = parts[0], parts[1]
	if from == "" {
		return "", "", fmt.Errorf("range %q: missing start revision", s)
	}
	if to == "" {
		to = "HEAD"
	}
	return from, to, nil
}

// ShouldIgnoreFile reports whether path matches any ignore pattern.
func ShouldIgnoreFile(path string, patterns []string) bool {
	return MatchesAny(path, patterns)
}

// MatchesAny returns true if the path matches any of the given glob patterns.
// "**/" prefixes match at any depth and a trailing "/**" matches everything
// under a directory.
func MatchesAny(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			dir = strings.TrimPrefix(dir, "**/")
			if strings.HasPrefix(path, dir+"/") || strings.Contains(path, "/"+dir+"/") {
				return true
			}
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

func contextArg(opts DiffOptions) []string {
	if opts.ContextLines > 0 {
		return []string{fmt.Sprintf("-U%d", opts.ContextLines)}
	}
	return nil
}

func revArgs(from, to string) []string {
	var args []string
	if from != "" {
		args = append(args, from)
	}
	if to != "" {
		args = append(args, to)
	}
	return args
}

func pathArgs(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	return append([]string{"--"}, paths...)
}

func rangeLabel(from, to string) string {
	return from + ".." + to
}

func (r Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return string(out), fmt.Errorf("%s: %s", err, msg)
		}
		return string(out), err
	}
	return string(out), nil
}
