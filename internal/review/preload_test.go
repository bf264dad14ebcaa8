package review

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"unicode/utf8"
)

func TestPreloadFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"main.go":       {Data: []byte("package main\n")},
		"big.txt":       {Data: []byte(strings.Repeat("a", 50))},
		"vendor/x/x.go": {Data: []byte("package x\n")},
		"image.png":     {Data: []byte("\x89PNG\x00\x01")},
	}

	paths := []string{"main.go", "missing.go", "vendor/x/x.go", "image.png", "big.txt", "../escape.go"}
	got := PreloadFiles(context.Background(), fsys, paths, PreloadOptions{
		Ignore:   []string{"vendor/**"},
		MaxChars: 10,
	})

	if len(got) != 2 {
		t.Fatalf("loaded %d files, want 2: %+v", len(got), got)
	}
	if got[0].Path != "main.go" || got[0].Content != "package ma"+truncatedMarker || !got[0].Truncated {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Path != "big.txt" || !got[1].Truncated || !strings.HasSuffix(got[1].Content, truncatedMarker) {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestPreloadFiles_MaxFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"a.go": {Data: []byte("a")},
		"b.go": {Data: []byte("b")},
		"c.go": {Data: []byte("c")},
	}
	got := PreloadFiles(context.Background(), fsys, []string{"a.go", "b.go", "c.go"}, PreloadOptions{MaxFiles: 2})
	if len(got) != 2 || got[1].Path != "b.go" {
		t.Errorf("PreloadFiles = %+v, want a.go and b.go", got)
	}
	if got[0].Truncated {
		t.Error("small file should not be truncated")
	}
}

func TestPreloadFiles_TruncatesOnRuneBoundary(t *testing.T) {
	fsys := fstest.MapFS{"doc.md": {Data: []byte("héllo wörld")}}
	got := PreloadFiles(context.Background(), fsys, []string{"doc.md"}, PreloadOptions{MaxChars: 2})
	if len(got) != 1 {
		t.Fatalf("loaded %d files, want 1", len(got))
	}
	if got[0].Content != "h"+truncatedMarker {
		t.Errorf("content = %q, want %q", got[0].Content, "h"+truncatedMarker)
	}
	if !utf8.ValidString(got[0].Content) {
		t.Error("truncated content is not valid UTF-8")
	}
}

func TestCutAtRune(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abc", 2, "ab"},
		{"日本", 4, "日"},
		{"日本", 3, "日"},
		{"日本", 2, ""},
	}
	for _, tt := range tests {
		if got := cutAtRune(tt.in, tt.n); got != tt.want {
			t.Errorf("cutAtRune(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
