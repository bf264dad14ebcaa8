package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAnthropic(server *httptest.Server) *Anthropic {
	a, _ := NewAnthropic("test-key", "claude-sonnet-4-20250514", "")
	a.client = &http.Client{
		Transport: &rewriteTransport{
			base:    server.Client().Transport,
			baseURL: server.URL,
		},
	}
	return a
}

func TestAnthropic_CallWithTools(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("Missing API key header")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Error("Missing anthropic-version header")
		}
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		io.WriteString(w, `{
			"content": [
				{"type": "text", "text": "Looking at the file."},
				{"type": "tool_use", "id": "tu_1", "name": "read_file", "input": {"path": "main.go"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 100, "output_tokens": 10}
		}`)
	}))
	defer server.Close()

	a := newTestAnthropic(server)
	resp, err := a.Call(context.Background(), Request{
		System: "review",
		Messages: []Message{
			UserText("diff"),
			{Role: RoleAssistant, Content: []Block{&ToolUseBlock{ID: "tu_0", Name: "list_files"}}},
			{Role: RoleUser, Content: []Block{&ToolResultBlock{ToolUseID: "tu_0", Content: "a.go", IsError: true}}},
		},
		Tools: []Tool{{Name: "read_file", Description: "Read", InputSchema: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if got.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", got.MaxTokens, defaultMaxTokens)
	}
	if got.System != "review" || len(got.Tools) != 1 || got.Tools[0].Name != "read_file" {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(got.Messages))
	}
	use := got.Messages[1].Content[0]
	if use.Type != "tool_use" || string(use.Input) != "{}" {
		t.Errorf("tool_use block = %+v, want empty object input", use)
	}
	res := got.Messages[2].Content[0]
	if res.Type != "tool_result" || res.ToolUseID != "tu_0" || !res.IsError {
		t.Errorf("tool_result block = %+v", res)
	}

	if resp.StopReason != StopToolUse {
		t.Errorf("StopReason = %q, want %q", resp.StopReason, StopToolUse)
	}
	if resp.Text() != "Looking at the file." {
		t.Errorf("Text = %q", resp.Text())
	}
	uses := resp.ToolUses()
	if len(uses) != 1 || uses[0].Name != "read_file" || string(uses[0].Input) != `{"path": "main.go"}` {
		t.Errorf("ToolUses = %+v", uses)
	}
	if resp.Usage.Total() != 110 {
		t.Errorf("Usage = %d, want 110", resp.Usage.Total())
	}
}

func TestAnthropic_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer server.Close()

	_, err := newTestAnthropic(server).Call(context.Background(), Request{Messages: []Message{UserText("x")}})
	if err == nil {
		t.Fatal("Expected auth error")
	}
	if !IsAuthError(err) {
		t.Errorf("Expected auth error, got: %v", err)
	}
}

func TestAnthropic_ServerErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(500)
		w.Write([]byte(`{"error":"internal server error"}`))
	}))
	defer server.Close()

	_, err := newTestAnthropic(server).Call(context.Background(), Request{Messages: []Message{UserText("x")}})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 500 {
		t.Errorf("Status = %d, want 500", apiErr.Status)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestAnthropicStopReason(t *testing.T) {
	tests := map[string]StopReason{
		"end_turn":      StopEndTurn,
		"stop_sequence": StopEndTurn,
		"tool_use":      StopToolUse,
		"max_tokens":    StopMaxTokens,
		"refusal":       StopUnknown,
	}
	for in, want := range tests {
		if got := anthropicStopReason(in); got != want {
			t.Errorf("anthropicStopReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMessagesURL(t *testing.T) {
	tests := map[string]string{
		"https://api.anthropic.com":       "https://api.anthropic.com/v1/messages",
		"https://proxy.local/v1/":         "https://proxy.local/v1/messages",
		"https://proxy.local/v1/messages": "https://proxy.local/v1/messages",
	}
	for in, want := range tests {
		if got := messagesURL(in); got != want {
			t.Errorf("messagesURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// rewriteTransport rewrites all request URLs to point at the test server.
type rewriteTransport struct {
	base    http.RoundTripper
	baseURL string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = t.baseURL[len("http://"):]
	if t.base != nil {
		return t.base.RoundTrip(req)
	}
	return http.DefaultTransport.RoundTrip(req)
}
