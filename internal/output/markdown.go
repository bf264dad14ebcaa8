package output

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/ethanasm/mcp-review/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, res *review.Result) error {
	ew := &errWriter{w: w}

	ew.printf("## mcp-review\n\n")
	if res.Range != "" {
		ew.printf("Range `%s` | %d files, +%d -%d | Confidence: **%s**\n\n",
			res.Range, res.Stats.FilesChanged, res.Stats.Insertions, res.Stats.Deletions, res.Confidence)
	} else {
		ew.printf("%d files, +%d -%d | Confidence: **%s**\n\n",
			res.Stats.FilesChanged, res.Stats.Insertions, res.Stats.Deletions, res.Confidence)
	}

	ew.printf("| Category | Count |\n")
	ew.printf("|----------|-------|\n")
	ew.printf("| Critical | %d |\n", len(res.Critical))
	ew.printf("| Suggestions | %d |\n", len(res.Suggestions))
	ew.printf("| Positive | %d |\n\n", len(res.Positive))

	if res.TruncationNote != "" {
		ew.printf("> **Note:** %s\n\n", res.TruncationNote)
	}

	for _, sec := range sections(res) {
		if len(sec.findings) == 0 {
			continue
		}
		ew.printf("<details%s>\n<summary>%s %s (%d)</summary>\n\n",
			openAttr(sec.kind), mdKindIcon(sec.kind), sec.title, len(sec.findings))

		for _, f := range sec.findings {
			ew.printf("**`%s`**\n\n", location(f))
			ew.printf("%s\n\n", f.Message)

			if f.Suggestion != "" {
				ew.printf("**Suggestion:**\n\n")
				// Wrap suggestion in code fence if it looks like code
				if looksLikeCode(f.Suggestion) {
					ew.printf("```%s\n%s\n```\n\n", inferLang(f.File), f.Suggestion)
				} else {
					ew.printf("> %s\n\n", strings.ReplaceAll(f.Suggestion, "\n", "\n> "))
				}
			}
			ew.printf("---\n\n")
		}

		ew.printf("</details>\n\n")
	}

	if u := res.TokenUsage; u != nil {
		ew.printf("*%d input / %d output tokens over %d provider calls*\n", u.InputTokens, u.OutputTokens, u.ProviderCalls)
	}
	return ew.err
}

func openAttr(k Kind) string {
	if k == KindCritical {
		return " open"
	}
	return ""
}

func mdKindIcon(k Kind) string {
	switch k {
	case KindCritical:
		return ":red_circle:"
	case KindSuggestion:
		return ":large_blue_circle:"
	case KindPositive:
		return ":white_check_mark:"
	default:
		return ":white_circle:"
	}
}

func looksLikeCode(s string) bool {
	codeIndicators := []string{
		"func ", "if ", "for ", "return ", "var ", "const ",
		"def ", "class ", "import ", "from ",
		"{", "}", "=>", "->", ":=", "==",
		"()", "[];",
	}
	for _, indicator := range codeIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

func inferLang(path string) string {
	langMap := map[string]string{
		".go":   "go",
		".py":   "python",
		".js":   "javascript",
		".ts":   "typescript",
		".tsx":  "tsx",
		".jsx":  "jsx",
		".rs":   "rust",
		".java": "java",
		".rb":   "ruby",
		".cpp":  "cpp",
		".c":    "c",
		".cs":   "csharp",
		".php":  "php",
		".sh":   "bash",
		".sql":  "sql",
		".yaml": "yaml",
		".yml":  "yaml",
		".json": "json",
		".tf":   "hcl",
	}
	return langMap[filepath.Ext(path)]
}
