package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
)

// Anthropic implements Provider for the Anthropic Messages API.
type Anthropic struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	retry    retryPolicy
}

// NewAnthropic creates an Anthropic provider. An empty baseURL means the
// public API.
func NewAnthropic(apiKey, model, baseURL string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: missing API key")
	}
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &Anthropic{
		apiKey:   apiKey,
		model:    model,
		endpoint: messagesURL(baseURL),
		client:   &http.Client{Timeout: 120 * time.Second},
		retry:    defaultRetry(),
	}, nil
}

func messagesURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1/messages") {
		return base
	}
	base = strings.TrimSuffix(base, "/v1")
	return base + "/v1/messages"
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Call(ctx context.Context, req Request) (Response, error) {
	body := a.buildRequest(req)
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}

	var resp Response
	err = a.retry.do(ctx, req.Status, func() error {
		respBody, err := post(ctx, a.client, a.endpoint, headers, payload)
		if err != nil {
			return err
		}
		var result anthropicResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		resp = result.toResponse()
		return nil
	})
	return resp, err
}

func (a *Anthropic) buildRequest(req Request) anthropicRequest {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	out := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.System,
	}
	for _, m := range req.Messages {
		msg := anthropicMessage{Role: string(m.Role)}
		for _, b := range m.Content {
			switch blk := b.(type) {
			case *TextBlock:
				if blk.Text == "" {
					continue
				}
				msg.Content = append(msg.Content, anthropicBlock{Type: "text", Text: blk.Text})
			case *ToolUseBlock:
				msg.Content = append(msg.Content, anthropicBlock{
					Type:  "tool_use",
					ID:    blk.ID,
					Name:  blk.Name,
					Input: assistantInput(blk.Input),
				})
			case *ToolResultBlock:
				msg.Content = append(msg.Content, anthropicBlock{
					Type:      "tool_result",
					ToolUseID: blk.ToolUseID,
					Content:   blk.Content,
					IsError:   blk.IsError,
				})
			}
		}
		out.Messages = append(out.Messages, msg)
	}
	for _, t := range req.Tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		out.Tools = append(out.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return out
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicResponse struct {
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      anthropicUsage   `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (r anthropicResponse) toResponse() Response {
	resp := Response{
		StopReason: anthropicStopReason(r.StopReason),
		Usage:      Usage{InputTokens: r.Usage.InputTokens, OutputTokens: r.Usage.OutputTokens},
	}
	for _, b := range r.Content {
		switch b.Type {
		case "text":
			resp.Content = append(resp.Content, &TextBlock{Text: b.Text})
		case "tool_use":
			resp.Content = append(resp.Content, &ToolUseBlock{ID: b.ID, Name: b.Name, Input: assistantInput(b.Input)})
		}
	}
	return resp
}

func anthropicStopReason(s string) StopReason {
	switch s {
	case "end_turn", "stop_sequence":
		return StopEndTurn
	case "tool_use":
		return StopToolUse
	case "max_tokens":
		return StopMaxTokens
	default:
		return StopUnknown
	}
}
