package review

import (
	"github.com/google/uuid"

	"github.com/ethanasm/mcp-review/internal/gitctx"
)

// Confidence is the model's confidence in its review.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Finding is one observation about the change.
type Finding struct {
	File       string `json:"file"`
	Line       int    `json:"line,omitempty"`
	EndLine    int    `json:"endLine,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// TokenUsage is the provider usage summed over a review session.
type TokenUsage struct {
	InputTokens   int `json:"inputTokens"`
	OutputTokens  int `json:"outputTokens"`
	ProviderCalls int `json:"providerCalls"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// Result is the outcome of one review session.
type Result struct {
	ID             string           `json:"id"`
	Range          string           `json:"range,omitempty"`
	Model          string           `json:"model,omitempty"`
	Critical       []Finding        `json:"critical"`
	Suggestions    []Finding        `json:"suggestions"`
	Positive       []Finding        `json:"positive"`
	Confidence     Confidence       `json:"confidence"`
	Stats          gitctx.DiffStats `json:"stats"`
	TokenUsage     *TokenUsage      `json:"tokenUsage,omitempty"`
	TruncationNote string           `json:"truncationNote,omitempty"`
}

// HasCritical reports whether the review found blocking issues.
func (r *Result) HasCritical() bool { return r != nil && len(r.Critical) > 0 }

// Count returns the total number of findings.
func (r *Result) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Critical) + len(r.Suggestions) + len(r.Positive)
}

func newResultID() string {
	return uuid.NewString()
}
