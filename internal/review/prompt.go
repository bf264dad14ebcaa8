package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethanasm/mcp-review/internal/gitctx"
)

const maxCommitLines = 50

const systemPrompt = `You are a strict, expert code reviewer. You review a git change range and produce a structured review.

Rules:
1. Only review the changes shown in the diff. Do not comment on unchanged code.
2. Focus on bugs, security issues, performance problems, and correctness. Avoid bikeshedding on style unless it impacts readability significantly.
3. Be concise and actionable. Every critical finding and suggestion should say how to fix it.
4. Reference line numbers in the new version of the file.
5. You may call the available tools to read files, inspect history, or search imports when the diff alone is not enough. Tool calls are limited, so batch related lookups into one turn.

When you are done, respond with a single fenced JSON block and nothing else of substance:

` + "```json" + `
{
  "critical": [{"file": "path", "line": 1, "endLine": 1, "message": "what is wrong", "suggestion": "how to fix it"}],
  "suggestions": [{"file": "path", "line": 1, "message": "what could be better", "suggestion": "how"}],
  "positive": [{"file": "path", "message": "what was done well"}],
  "confidence": "high|medium|low"
}
` + "```" + `

"critical" is for issues that must be fixed before merging. Use empty arrays when a category has nothing.`

const genericInstructions = `Review the following change. Look for bugs, security issues, performance problems, correctness, and maintainability concerns.
`

// focusTemplates holds per-area instructions used instead of the generic ones.
var focusTemplates = map[string]string{
	"security": `Security review: look for injection (SQL, command, path traversal), missing authentication or authorization checks, unsafe deserialization, secrets committed in code, weak cryptography, and unvalidated input crossing a trust boundary.
`,
	"performance": `Performance review: look for unnecessary allocations in hot paths, N+1 queries, unbounded growth of collections, blocking calls on latency-sensitive paths, missing pagination, and algorithmic complexity regressions.
`,
	"maintainability": `Maintainability review: look for unclear naming, duplicated logic, functions doing too much, leaky abstractions, missing error context, and changes that make the code harder to test.
`,
	"testing": `Testing review: look for changed behavior without tests, tests that cannot fail, missing edge cases (empty input, errors, concurrency), flaky timing assumptions, and over-mocked tests that do not exercise real behavior.
`,
}

// FocusAreas returns the recognized focus area names, sorted.
func FocusAreas() []string {
	areas := make([]string, 0, len(focusTemplates))
	for a := range focusTemplates {
		areas = append(areas, a)
	}
	sort.Strings(areas)
	return areas
}

// SystemPrompt returns the system prompt for the LLM.
func SystemPrompt() string {
	return systemPrompt
}

// PromptInput is everything the initial prompt is built from.
type PromptInput struct {
	Range      string
	Diff       string
	Stats      gitctx.DiffStats
	Commits    []gitctx.CommitInfo
	Focus      []string
	Rules      *Rules
	Truncation Truncation
	Files      []FileContent
}

// BuildInitialPrompt constructs the first user message of a review session.
func BuildInitialPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString(focusInstructions(in.Focus))

	if in.Range != "" {
		fmt.Fprintf(&b, "Range: %s\n", in.Range)
	}
	fmt.Fprintf(&b, "Changes: %d files, +%d -%d\n", in.Stats.FilesChanged, in.Stats.Insertions, in.Stats.Deletions)

	// Language hints from file extensions
	paths := in.Stats.Paths()
	if len(paths) == 0 {
		paths = DiffPaths(in.Diff)
	}
	if langs := detectLanguages(paths); len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}

	if rulesSection := BuildRulesPromptSection(in.Rules); rulesSection != "" {
		b.WriteString(rulesSection)
	}

	if commits := commitSection(in.Commits); commits != "" {
		b.WriteString("\n## Commits\n")
		b.WriteString(commits)
	}

	if in.Truncation.Truncated {
		fmt.Fprintf(&b, "\nNote: the diff was truncated to fit the context budget (%d of %d files omitted).\n",
			in.Truncation.OmittedFiles, in.Truncation.TotalFiles)
	}

	b.WriteString("\n--- BEGIN DIFF ---\n")
	b.WriteString(in.Diff)
	b.WriteString("\n--- END DIFF ---\n")

	if len(in.Files) > 0 {
		b.WriteString("\n## Full contents of changed files\n")
		for _, f := range in.Files {
			fmt.Fprintf(&b, "\n--- FILE: %s ---\n", f.Path)
			b.WriteString(f.Content)
			if !strings.HasSuffix(f.Content, "\n") {
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// focusInstructions concatenates the templates of every recognized focus
// area. With none recognized the generic instructions are used.
func focusInstructions(focus []string) string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, f := range focus {
		key := strings.ToLower(strings.TrimSpace(f))
		tmpl, ok := focusTemplates[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		b.WriteString(tmpl)
	}
	if b.Len() == 0 {
		return genericInstructions
	}
	return b.String()
}

func commitSection(commits []gitctx.CommitInfo) string {
	var lines []string
	for _, c := range commits {
		short := c.SHA
		if len(short) > 7 {
			short = short[:7]
		}
		lines = append(lines, fmt.Sprintf("- %s %s", short, c.Subject))
		for _, l := range strings.Split(strings.TrimSpace(c.Body), "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, "  "+l)
			}
		}
	}
	if len(lines) > maxCommitLines {
		omitted := len(lines) - maxCommitLines
		lines = append(lines[:maxCommitLines], fmt.Sprintf("  ... %d more lines", omitted))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func detectLanguages(files []string) []string {
	langMap := map[string]string{
		".go":    "Go",
		".py":    "Python",
		".js":    "JavaScript",
		".ts":    "TypeScript",
		".tsx":   "TypeScript/React",
		".jsx":   "JavaScript/React",
		".rs":    "Rust",
		".java":  "Java",
		".rb":    "Ruby",
		".cpp":   "C++",
		".c":     "C",
		".h":     "C/C++",
		".cs":    "C#",
		".php":   "PHP",
		".swift": "Swift",
		".kt":    "Kotlin",
		".sql":   "SQL",
		".sh":    "Shell",
		".yaml":  "YAML",
		".yml":   "YAML",
		".json":  "JSON",
		".tf":    "Terraform",
	}

	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		for ext, lang := range langMap {
			if strings.HasSuffix(f, ext) && !seen[lang] {
				seen[lang] = true
				langs = append(langs, lang)
			}
		}
	}
	sort.Strings(langs)
	return langs
}
