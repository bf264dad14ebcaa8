package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func newTestOpenAI(t *testing.T, server *httptest.Server, key string) *OpenAI {
	t.Helper()
	o, err := NewOpenAI("openai", key, "gpt-4.1", "https://api.openai.com/v1")
	if err != nil {
		t.Fatal(err)
	}
	o.client = &http.Client{
		Transport: &rewriteTransport{
			base:    server.Client().Transport,
			baseURL: server.URL,
		},
	}
	return o
}

func TestOpenAI_CallConvertsDialect(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		io.WriteString(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [
						{"id": "call_1", "type": "function", "function": {"name": "read_file", "arguments": "{\"path\":\"a.go\"}"}},
						{"id": "call_2", "type": "function", "function": {"name": "list_files", "arguments": "[1,2]"}}
					]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 50, "completion_tokens": 5, "total_tokens": 55}
		}`)
	}))
	defer server.Close()

	o := newTestOpenAI(t, server, "test-key")
	resp, err := o.Call(context.Background(), Request{
		System: "You review code.",
		Messages: []Message{
			UserText("diff"),
			{Role: RoleAssistant, Content: []Block{
				&TextBlock{Text: "checking"},
				&ToolUseBlock{ID: "call_0", Name: "read_file", Input: json.RawMessage(`"not an object"`)},
			}},
			{Role: RoleUser, Content: []Block{&ToolResultBlock{ToolUseID: "call_0", Content: "package main"}}},
		},
		Tools: []Tool{{Name: "read_file", InputSchema: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if len(got.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(got.Messages))
	}
	if got.Messages[0].Role != openai.ChatMessageRoleSystem || got.Messages[0].Content != "You review code." {
		t.Errorf("system message = %+v", got.Messages[0])
	}
	asst := got.Messages[2]
	if asst.Role != openai.ChatMessageRoleAssistant || asst.Content != "checking" || len(asst.ToolCalls) != 1 {
		t.Fatalf("assistant message = %+v", asst)
	}
	if asst.ToolCalls[0].Function.Arguments != "{}" {
		t.Errorf("arguments = %q, want {}", asst.ToolCalls[0].Function.Arguments)
	}
	tool := got.Messages[3]
	if tool.Role != openai.ChatMessageRoleTool || tool.ToolCallID != "call_0" || tool.Content != "package main" {
		t.Errorf("tool message = %+v", tool)
	}
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "read_file" {
		t.Errorf("tools = %+v", got.Tools)
	}

	if resp.StopReason != StopToolUse {
		t.Errorf("StopReason = %q, want %q", resp.StopReason, StopToolUse)
	}
	uses := resp.ToolUses()
	if len(uses) != 2 {
		t.Fatalf("ToolUses = %d, want 2", len(uses))
	}
	if string(uses[0].Input) != `{"path":"a.go"}` || string(uses[1].Input) != "{}" {
		t.Errorf("inputs = %s, %s", uses[0].Input, uses[1].Input)
	}
	if resp.Text() != "" {
		t.Errorf("Text = %q, want empty", resp.Text())
	}
	if resp.Usage != (Usage{InputTokens: 50, OutputTokens: 5}) {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestOpenAI_NoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("Authorization = %q, want none", h)
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	resp, err := newTestOpenAI(t, server, "").Call(context.Background(), Request{Messages: []Message{UserText("x")}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StopReason != StopEndTurn || resp.Text() != "done" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	if _, err := newTestOpenAI(t, server, "k").Call(context.Background(), Request{}); err == nil {
		t.Fatal("Expected error for empty choices")
	}
}

func TestOpenAI_RateLimitHonoursRetryAfter(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(429)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	o := newTestOpenAI(t, server, "k")
	var waits []time.Duration
	o.retry = retryPolicy{maxAttempts: 3, baseDelay: time.Hour, sleep: func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}}
	var statuses []string
	resp, err := o.Call(context.Background(), Request{Status: func(s string) { statuses = append(statuses, s) }})
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Errorf("Text = %q", resp.Text())
	}
	if len(waits) != 1 || waits[0] != 7*time.Second {
		t.Errorf("waits = %v, want [7s]", waits)
	}
	if len(statuses) != 1 {
		t.Errorf("statuses = %v, want one progress update", statuses)
	}
}

func TestOpenAI_RateLimitExhausted(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(429)
	}))
	defer server.Close()

	o := newTestOpenAI(t, server, "k")
	o.retry = retryPolicy{maxAttempts: 3, baseDelay: time.Millisecond, sleep: func(context.Context, time.Duration) error { return nil }}
	_, err := o.Call(context.Background(), Request{})
	if !errors.Is(err, ErrRateLimitExhausted) {
		t.Fatalf("err = %v, want ErrRateLimitExhausted", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestSanitizeArguments(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"b":1,"a":"x"}`, `{"a":"x","b":1}`},
		{`[1,2]`, `{}`},
		{`"str"`, `{}`},
		{`null`, `{}`},
		{`not json`, `{}`},
		{``, `{}`},
	}
	for _, tt := range tests {
		if got := sanitizeArguments(json.RawMessage(tt.in)); got != tt.want {
			t.Errorf("sanitizeArguments(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConvertMessages_ToolErrorPrefixedOnce(t *testing.T) {
	msgs := []Message{{Role: RoleUser, Content: []Block{
		&ToolResultBlock{ToolUseID: "t1", Content: "Error: tool server s: calling t: closed", IsError: true},
		&ToolResultBlock{ToolUseID: "t2", Content: "file not found", IsError: true},
		&ToolResultBlock{ToolUseID: "t3", Content: "Error: appears in a normal file"},
	}}}
	out := convertMessages("", msgs)
	if len(out) != 3 {
		t.Fatalf("messages = %d, want 3", len(out))
	}
	want := []string{
		"Error: tool server s: calling t: closed",
		"Error: file not found",
		"Error: appears in a normal file",
	}
	for i, m := range out {
		if m.Content != want[i] {
			t.Errorf("message %d content = %q, want %q", i, m.Content, want[i])
		}
	}
}
