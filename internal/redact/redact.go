package redact

import (
	"regexp"
	"sort"
)

// Placeholder replaces every detected secret.
const Placeholder = "[REDACTED]"

// Rule is one named secret heuristic.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Order matters: provider-specific key shapes run before the generic ones
// that would also match them.
var defaultRules = []Rule{
	{"private-key", regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----[\s\S]*?(-----END\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----|\z)`)},
	{"aws-access-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws-secret-access-key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"anthropic-key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai-key", regexp.MustCompile(`sk-(proj-)?[A-Za-z0-9_-]{20,}`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack-token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"bearer-token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._~+/-]{20,}=*`)},
	{"connection-string", regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s:/@"']+:[^\s@"']{3,}@[^\s"']+`)},
	{"api-key-assignment", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"secret-assignment", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"hex-secret", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// DefaultRules returns the built-in rules.
func DefaultRules() []Rule {
	return append([]Rule(nil), defaultRules...)
}

// Redactor applies a fixed set of rules.
type Redactor struct {
	rules []Rule
}

// New returns a Redactor with the built-in rules followed by extra.
func New(extra ...Rule) *Redactor {
	return &Redactor{rules: append(DefaultRules(), extra...)}
}

var std = New()

// Text replaces detected secrets in s using the built-in rules.
func Text(s string) string {
	return std.Text(s)
}

// Text replaces detected secrets in s with Placeholder.
func (r *Redactor) Text(s string) string {
	for _, rule := range r.rules {
		s = rule.Pattern.ReplaceAllLiteralString(s, Placeholder)
	}
	return s
}

// Scan returns the names of the rules that match s, sorted, with the number
// of matches for each. It does not modify s.
func (r *Redactor) Scan(s string) map[string]int {
	hits := make(map[string]int)
	for _, rule := range r.rules {
		if n := len(rule.Pattern.FindAllStringIndex(s, -1)); n > 0 {
			hits[rule.Name] += n
			s = rule.Pattern.ReplaceAllLiteralString(s, Placeholder)
		}
	}
	return hits
}

// RuleNames returns the names of r's rules, sorted.
func (r *Redactor) RuleNames() []string {
	names := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		names = append(names, rule.Name)
	}
	sort.Strings(names)
	return names
}
