package review

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules represents a rules pack loaded from the rulesFile setting.
type Rules struct {
	Focus    []string        `yaml:"focus,omitempty"`
	Required []RequiredCheck `yaml:"required,omitempty"`
}

// RequiredCheck is a policy check that should always be enforced.
type RequiredCheck struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// LoadRules loads a rules file from disk. Returns nil Rules and nil error if path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	for i, req := range rules.Required {
		if strings.TrimSpace(req.Text) == "" {
			return nil, fmt.Errorf("parsing rules file: required check %d has no text", i+1)
		}
	}
	return &rules, nil
}

// MergeFocus returns focus followed by any rules focus areas not already in it.
func MergeFocus(focus []string, rules *Rules) []string {
	out := append([]string(nil), focus...)
	if rules == nil {
		return out
	}
	seen := make(map[string]bool, len(out))
	for _, f := range out {
		seen[strings.ToLower(f)] = true
	}
	for _, f := range rules.Focus {
		if !seen[strings.ToLower(f)] {
			seen[strings.ToLower(f)] = true
			out = append(out, f)
		}
	}
	return out
}

// BuildRulesPromptSection returns additional prompt instructions derived from rules.
func BuildRulesPromptSection(rules *Rules) string {
	if rules == nil || len(rules.Required) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n## Required checks (always evaluate these)\n")
	for _, req := range rules.Required {
		if req.ID != "" {
			fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
		} else {
			fmt.Fprintf(&b, "- %s\n", req.Text)
		}
	}
	return b.String()
}
