package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ethanasm/mcp-review/internal/review"
)

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{}
	if err := w.Write(&buf, sampleResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var decoded review.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if decoded.ID != "id-1" || decoded.Confidence != review.ConfidenceMedium {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Critical) != 1 || decoded.Critical[0].EndLine != 12 {
		t.Errorf("critical = %+v", decoded.Critical)
	}
	if decoded.TokenUsage == nil || decoded.TokenUsage.ProviderCalls != 2 {
		t.Errorf("tokenUsage = %+v", decoded.TokenUsage)
	}
}

func TestJSONWriter_EmptyArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, emptyResult()); err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"critical", "suggestions", "positive"} {
		if string(raw[k]) != "[]" {
			t.Errorf("%s = %s, want []", k, raw[k])
		}
	}
	if _, ok := raw["tokenUsage"]; ok {
		t.Error("tokenUsage should be omitted when absent")
	}
}

func TestGetWriter(t *testing.T) {
	for _, format := range []string{"", "text", "json", "markdown", "md", "sarif"} {
		if _, err := GetWriter(format); err != nil {
			t.Errorf("GetWriter(%q) error: %v", format, err)
		}
	}
	if _, err := GetWriter("html"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestJSONWriter_NilFindingsAndHTML(t *testing.T) {
	res := &review.Result{ID: "x", Suggestions: []review.Finding{{File: "a.go", Message: "use a < b && c > d"}}}
	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, res); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte(`"critical": []`)) {
		t.Errorf("nil critical should encode as []:\n%s", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte("a < b && c > d")) {
		t.Errorf("HTML characters were escaped:\n%s", out)
	}
	if res.Critical != nil {
		t.Error("Write modified its input")
	}
}
