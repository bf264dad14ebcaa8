package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethanasm/mcp-review/internal/review"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"

// SARIFWriter outputs critical findings and suggestions in SARIF v2.1.0
// format. Positive findings are not results and are left out.
type SARIFWriter struct {
	Version string
}

func (s *SARIFWriter) Write(w io.Writer, res *review.Result) error {
	sarif := buildSARIF(res, s.Version)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Results     []sarifResult     `json:"results"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Properties  map[string]any    `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
	Fixes     []sarifFix      `json:"fixes,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine,omitempty"`
}

type sarifFix struct {
	Description sarifMessage `json:"description"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool                `json:"executionSuccessful"`
	Notifications       []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level   string       `json:"level"`
	Message sarifMessage `json:"message"`
}

var sarifRules = []struct {
	kind  Kind
	level string
	desc  string
}{
	{KindCritical, "error", "Issue that should be fixed before merging"},
	{KindSuggestion, "warning", "Suggested improvement"},
}

func ruleID(k Kind) string { return "mcp-review/" + string(k) }

func buildSARIF(res *review.Result, version string) sarifLog {
	if version == "" {
		version = "dev"
	}
	driver := sarifDriver{
		Name:           "mcp-review",
		Version:        version,
		InformationURI: "https://github.com/ethanasm/mcp-review",
	}
	for _, r := range sarifRules {
		driver.Rules = append(driver.Rules, sarifRule{
			ID:               ruleID(r.kind),
			Name:             string(r.kind),
			ShortDescription: sarifMessage{Text: r.desc},
			DefaultConfig:    sarifDefaultConfig{Level: r.level},
		})
	}

	results := []sarifResult{}
	add := func(findings []review.Finding, k Kind, level string) {
		for _, f := range findings {
			r := sarifResult{
				RuleID:  ruleID(k),
				Level:   level,
				Message: sarifMessage{Text: f.Message},
			}
			if f.File != "" {
				loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: f.File},
				}}
				if f.Line > 0 {
					reg := &sarifRegion{StartLine: f.Line}
					if f.EndLine >= f.Line {
						reg.EndLine = f.EndLine
					}
					loc.PhysicalLocation.Region = reg
				}
				r.Locations = []sarifLocation{loc}
			}
			if f.Suggestion != "" {
				r.Fixes = []sarifFix{{Description: sarifMessage{Text: f.Suggestion}}}
			}
			results = append(results, r)
		}
	}
	add(res.Critical, KindCritical, "error")
	add(res.Suggestions, KindSuggestion, "warning")

	run := sarifRun{
		Tool:    sarifTool{Driver: driver},
		Results: results,
		Properties: map[string]any{
			"confidence": string(res.Confidence),
			"reviewId":   res.ID,
		},
	}
	if res.TruncationNote != "" {
		run.Invocations = []sarifInvocation{{
			ExecutionSuccessful: true,
			Notifications:       []sarifNotification{{Level: "warning", Message: sarifMessage{Text: res.TruncationNote}}},
		}}
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  sarifSchema,
		Runs:    []sarifRun{run},
	}
}
