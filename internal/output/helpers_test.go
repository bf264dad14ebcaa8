package output

import (
	"github.com/ethanasm/mcp-review/internal/gitctx"
	"github.com/ethanasm/mcp-review/internal/review"
)

func emptyResult() *review.Result {
	return &review.Result{
		ID:          "id-empty",
		Critical:    []review.Finding{},
		Suggestions: []review.Finding{},
		Positive:    []review.Finding{},
		Confidence:  review.ConfidenceHigh,
	}
}

func sampleResult() *review.Result {
	return &review.Result{
		ID:    "id-1",
		Range: "main..feature",
		Model: "claude-sonnet-4-20250514",
		Critical: []review.Finding{{
			File:       "main.go",
			Line:       10,
			EndLine:    12,
			Message:    "x could be nil here",
			Suggestion: "if x == nil { return err }",
		}},
		Suggestions: []review.Finding{{
			File:       "util.go",
			Line:       3,
			Message:    "Consider a clearer name",
			Suggestion: "Rename to parseConfig",
		}},
		Positive:   []review.Finding{{File: "util_test.go", Message: "Good table tests"}},
		Confidence: review.ConfidenceMedium,
		Stats: gitctx.DiffStats{
			FilesChanged: 3,
			Insertions:   40,
			Deletions:    5,
		},
		TokenUsage:     &review.TokenUsage{InputTokens: 1200, OutputTokens: 300, ProviderCalls: 2},
		TruncationNote: "Diff truncated: 1 of 4 files omitted to fit the context budget",
	}
}
