package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethanasm/mcp-review/internal/review"
)

func TestTextWriter_NoFindings(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, emptyResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Findings: 0 critical, 0 suggestions, 0 positive") {
		t.Errorf("Output should show zero findings:\n%s", out)
	}
	if !strings.Contains(out, "No issues found") {
		t.Error("Output should say no issues found")
	}
	if strings.Contains(out, "Tokens:") {
		t.Error("Output should not show token usage when absent")
	}
}

func TestTextWriter_WithFindings(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{}
	if err := w.Write(&buf, sampleResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Range: main..feature",
		"Changes: 3 files, +40 -5",
		"Confidence: medium",
		"[!!] CRITICAL",
		"main.go:10-12",
		"x could be nil here",
		"Suggestion:",
		"[~] SUGGESTIONS",
		"util.go:3",
		"[+] POSITIVE",
		"util_test.go",
		"Note: Diff truncated",
		"Tokens: 1200 in, 300 out over 2 provider calls (claude-sonnet-4-20250514)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q", want)
		}
	}
	if strings.Index(out, "CRITICAL") > strings.Index(out, "SUGGESTIONS") {
		t.Error("critical should come before suggestions")
	}
}

func TestWrapText(t *testing.T) {
	short := wrapText("hello world", 70)
	if len(short) != 1 || short[0] != "hello world" {
		t.Errorf("short text: %v", short)
	}

	long := wrapText("this is a longer sentence that should be wrapped at a narrow width for testing", 20)
	if len(long) < 3 {
		t.Errorf("expected multiple lines, got %d", len(long))
	}
	for _, line := range long {
		if len(line) > 20 {
			t.Errorf("line too long: %q (%d chars)", line, len(line))
		}
	}

	paras := wrapText("first\nsecond", 70)
	if len(paras) != 2 {
		t.Errorf("newlines should be kept, got %v", paras)
	}
}

func TestLocation(t *testing.T) {
	r := sampleResult()
	if got := location(r.Critical[0]); got != "main.go:10-12" {
		t.Errorf("location = %q", got)
	}
	if got := location(r.Suggestions[0]); got != "util.go:3" {
		t.Errorf("location = %q", got)
	}
	if got := location(r.Positive[0]); got != "util_test.go" {
		t.Errorf("location = %q", got)
	}
	if got := location(review.Finding{Message: "overall"}); got != "(general)" {
		t.Errorf("location = %q", got)
	}
}
