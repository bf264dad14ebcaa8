package review

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"unicode/utf8"

	"github.com/ethanasm/mcp-review/internal/gitctx"
)

const (
	DefaultMaxFiles     = 20
	DefaultMaxFileChars = 12_000
	truncatedMarker     = "\n... [file truncated]"
)

// FileContent is the text of one changed file inlined into the prompt.
type FileContent struct {
	Path      string
	Content   string
	Truncated bool
}

// PreloadOptions bounds file pre-loading.
type PreloadOptions struct {
	Ignore   []string
	MaxFiles int
	MaxChars int
	Logger   *slog.Logger
}

// PreloadFiles reads the listed files from fsys. Ignored, missing, binary and
// non-local paths are skipped; at most MaxFiles are returned, each capped at
// MaxChars bytes, cut on a UTF-8 character boundary.
func PreloadFiles(ctx context.Context, fsys fs.FS, paths []string, opts PreloadOptions) []FileContent {
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxFileChars
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var out []FileContent
	for _, p := range paths {
		if len(out) >= maxFiles || ctx.Err() != nil {
			break
		}
		if gitctx.ShouldIgnoreFile(p, opts.Ignore) || !fs.ValidPath(p) {
			continue
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			log.Debug("skipping preload", "path", p, "err", err)
			continue
		}
		if bytes.IndexByte(data, 0) >= 0 {
			continue
		}
		fc := FileContent{Path: p, Content: string(data)}
		if len(fc.Content) > maxChars {
			fc.Content = cutAtRune(fc.Content, maxChars) + truncatedMarker
			fc.Truncated = true
		}
		out = append(out, fc)
	}
	return out
}

// cutAtRune returns at most n bytes of s without splitting a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
