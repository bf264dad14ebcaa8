package output

import (
	"fmt"
	"io"
	"os"

	"github.com/ethanasm/mcp-review/internal/review"
)

// ToolVersion is reported by machine-readable formats.
var ToolVersion = "dev"

// Writer writes a result in a specific format.
type Writer interface {
	Write(w io.Writer, res *review.Result) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "", "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{Version: ToolVersion}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteResult writes res to outPath, or to stdout when outPath is empty.
func WriteResult(res *review.Result, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, res)
}

// Kind is the category a finding was reported under.
type Kind string

const (
	KindCritical   Kind = "critical"
	KindSuggestion Kind = "suggestion"
	KindPositive   Kind = "positive"
)

type section struct {
	kind     Kind
	title    string
	findings []review.Finding
}

func sections(res *review.Result) []section {
	return []section{
		{KindCritical, "Critical", res.Critical},
		{KindSuggestion, "Suggestions", res.Suggestions},
		{KindPositive, "Positive", res.Positive},
	}
}

func location(f review.Finding) string {
	path := f.File
	if path == "" {
		path = "(general)"
	}
	switch {
	case f.Line > 0 && f.EndLine > f.Line:
		return fmt.Sprintf("%s:%d-%d", path, f.Line, f.EndLine)
	case f.Line > 0:
		return fmt.Sprintf("%s:%d", path, f.Line)
	default:
		return path
	}
}
