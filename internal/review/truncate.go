package review

import (
	"fmt"
	"strings"
)

const (
	// CharsPerToken approximates token counts from character counts.
	CharsPerToken = 4
	// DefaultMaxDiffTokens is the diff budget when none is configured.
	DefaultMaxDiffTokens = 100_000
)

// Truncation is the result of fitting a diff into a token budget.
type Truncation struct {
	Diff         string
	Truncated    bool
	TotalFiles   int
	OmittedFiles int
	// Omitted holds the header line of every omitted file section.
	Omitted []string
}

// Note returns a one-line description of what was dropped, or "".
func (t Truncation) Note() string {
	if !t.Truncated {
		return ""
	}
	return fmt.Sprintf("Diff truncated: %d of %d files omitted to fit the context budget", t.OmittedFiles, t.TotalFiles)
}

// TruncateDiff keeps whole per-file sections of diff, in order, while they
// fit in maxTokens. The first section is always kept. When anything is
// dropped, a notice listing the omitted file headers is appended.
func TruncateDiff(diff string, maxTokens int) Truncation {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxDiffTokens
	}
	budget := maxTokens * CharsPerToken
	sections := splitSections(diff)
	if len(diff) <= budget {
		return Truncation{Diff: diff, TotalFiles: len(sections)}
	}

	var kept strings.Builder
	n := 0
	for i, sec := range sections {
		if i > 0 && kept.Len()+len(sec) > budget {
			break
		}
		kept.WriteString(sec)
		n++
	}

	t := Truncation{TotalFiles: len(sections), OmittedFiles: len(sections) - n}
	if t.OmittedFiles == 0 {
		t.Diff = diff
		return t
	}
	t.Truncated = true
	for _, sec := range sections[n:] {
		t.Omitted = append(t.Omitted, sectionHeader(sec))
	}

	kept.WriteString(omissionNotice(t.Omitted))
	t.Diff = kept.String()
	return t
}

func omissionNotice(headers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[DIFF TRUNCATED: %d files omitted to fit the context budget]\n", len(headers))
	b.WriteString("Omitted file sections:\n")
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("\n")
	}
	b.WriteString("If you need any of these changes, fetch them individually with the get_diff tool (or read_file for the current contents).\n")
	return b.String()
}

func splitSections(diff string) []string {
	if strings.TrimSpace(diff) == "" {
		return nil
	}
	var sections []string
	lines := strings.SplitAfter(diff, "\n")
	var current strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		s := current.String()
		if strings.TrimSpace(s) != "" {
			sections = append(sections, s)
		}
	}
	return sections
}

func sectionHeader(section string) string {
	line, _, _ := strings.Cut(section, "\n")
	return strings.TrimRight(line, "\r")
}

func pathFromSection(section string) string {
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			return strings.TrimPrefix(line, "+++ b/")
		}
	}
	return ""
}

// DiffPaths returns the new-side paths named in diff, in order.
func DiffPaths(diff string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, sec := range splitSections(diff) {
		p := pathFromSection(sec)
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
