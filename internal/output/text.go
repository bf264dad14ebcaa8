package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethanasm/mcp-review/internal/review"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, res *review.Result) error {
	ew := &errWriter{w: w}

	ew.println("mcp-review")
	if res.Range != "" {
		ew.printf("Range: %s\n", res.Range)
	}
	ew.printf("Changes: %d files, +%d -%d\n", res.Stats.FilesChanged, res.Stats.Insertions, res.Stats.Deletions)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Findings: %d critical, %d suggestions, %d positive | Confidence: %s\n",
		len(res.Critical), len(res.Suggestions), len(res.Positive), res.Confidence)
	ew.println(strings.Repeat("─", 60))

	if res.TruncationNote != "" {
		ew.printf("\nNote: %s\n", res.TruncationNote)
	}

	if len(res.Critical)+len(res.Suggestions)+len(res.Positive) == 0 {
		ew.println("\nNo issues found. Looks good!")
	}

	for _, sec := range sections(res) {
		if len(sec.findings) == 0 {
			continue
		}
		ew.printf("\n%s %s\n", kindIcon(sec.kind), strings.ToUpper(sec.title))
		ew.println(strings.Repeat("─", 40))

		for _, f := range sec.findings {
			ew.printf("\n  %s\n", location(f))
			for _, line := range wrapText(f.Message, 70) {
				ew.printf("    %s\n", line)
			}
			if f.Suggestion != "" {
				ew.println("  Suggestion:")
				for _, line := range wrapText(f.Suggestion, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	if u := res.TokenUsage; u != nil {
		ew.printf("Tokens: %d in, %d out over %d provider calls", u.InputTokens, u.OutputTokens, u.ProviderCalls)
		if res.Model != "" {
			ew.printf(" (%s)", res.Model)
		}
		ew.println("")
	}

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func kindIcon(k Kind) string {
	switch k {
	case KindCritical:
		return "[!!]"
	case KindSuggestion:
		return "[~]"
	case KindPositive:
		return "[+]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if len(para) <= width {
			lines = append(lines, para)
			continue
		}
		var current strings.Builder
		for _, word := range strings.Fields(para) {
			if current.Len()+len(word)+1 > width && current.Len() > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(word)
		}
		if current.Len() > 0 {
			lines = append(lines, current.String())
		}
	}
	return lines
}
