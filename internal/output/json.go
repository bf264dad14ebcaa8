package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethanasm/mcp-review/internal/review"
)

// JSONWriter outputs the full result as JSON. Finding lists are always
// arrays, never null.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, res *review.Result) error {
	out := *res
	out.Critical = nonNil(out.Critical)
	out.Suggestions = nonNil(out.Suggestions)
	out.Positive = nonNil(out.Positive)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	// Suggestions are often code; keep <, > and & readable.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func nonNil(f []review.Finding) []review.Finding {
	if f == nil {
		return []review.Finding{}
	}
	return f
}
