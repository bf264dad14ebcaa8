package review

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const fallbackExcerptChars = 500

var errNotReview = errors.New("object has no review fields")

var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n(.*?)```")

type rawReview struct {
	Critical    []rawFinding `json:"critical"`
	Suggestions []rawFinding `json:"suggestions"`
	Positive    []rawFinding `json:"positive"`
	Confidence  string       `json:"confidence"`
}

type rawFinding struct {
	File       string          `json:"file"`
	Path       string          `json:"path"`
	Line       json.RawMessage `json:"line"`
	EndLine    json.RawMessage `json:"endLine"`
	Message    string          `json:"message"`
	Suggestion string          `json:"suggestion"`
}

// ParseReview extracts the review from the model's final text. It looks for
// the first fenced block that decodes as a review object; unfenced JSON does
// not count. When no block decodes, a
// low-confidence result carrying an excerpt of the text is returned; ok
// reports which case occurred.
func ParseReview(text string) (res *Result, ok bool) {
	for _, m := range fencedJSON.FindAllStringSubmatch(text, -1) {
		if r, err := decodeReview(m[1]); err == nil {
			return r, true
		}
	}
	return fallbackResult(text), false
}

func decodeReview(body string) (*Result, error) {
	data := []byte(strings.TrimSpace(body))
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	if !hasAnyKey(keys, "critical", "suggestions", "positive", "confidence") {
		return nil, errNotReview
	}
	var raw rawReview
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &Result{
		Critical:    convertFindings(raw.Critical),
		Suggestions: convertFindings(raw.Suggestions),
		Positive:    convertFindings(raw.Positive),
		Confidence:  normalizeConfidence(raw.Confidence),
	}, nil
}

func hasAnyKey(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func convertFindings(raw []rawFinding) []Finding {
	out := make([]Finding, 0, len(raw))
	for _, r := range raw {
		file := r.File
		if file == "" {
			file = r.Path
		}
		out = append(out, Finding{
			File:       file,
			Line:       lenientInt(r.Line),
			EndLine:    lenientInt(r.EndLine),
			Message:    r.Message,
			Suggestion: r.Suggestion,
		})
	}
	return out
}

// lenientInt accepts a JSON number or a numeric string. Anything else is 0.
func lenientInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

func normalizeConfidence(s string) Confidence {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c
	default:
		return ConfidenceMedium
	}
}

func fallbackResult(text string) *Result {
	excerpt := strings.TrimSpace(text)
	if r := []rune(excerpt); len(r) > fallbackExcerptChars {
		excerpt = string(r[:fallbackExcerptChars]) + "..."
	}
	if excerpt == "" {
		excerpt = "The model returned no review text."
	}
	return &Result{
		Critical:    []Finding{},
		Suggestions: []Finding{{Message: excerpt}},
		Positive:    []Finding{},
		Confidence:  ConfidenceLow,
	}
}
