package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements Provider for any OpenAI-compatible chat-completions
// endpoint. Requests and responses use go-openai's wire types; the HTTP call
// itself is made here so that Retry-After is visible on 429s.
type OpenAI struct {
	name     string
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	retry    retryPolicy
}

// NewOpenAI creates an OpenAI-compatible provider. baseURL is the API root
// (for example https://api.openai.com/v1); an empty apiKey sends no
// Authorization header.
func NewOpenAI(name, apiKey, model, baseURL string) (*OpenAI, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%s: missing endpoint", name)
	}
	return &OpenAI{
		name:     name,
		apiKey:   apiKey,
		model:    model,
		endpoint: chatCompletionsURL(baseURL),
		client:   &http.Client{Timeout: 300 * time.Second},
		retry:    defaultRetry(),
	}, nil
}

// toolErrorPrefix marks failed tool results, which this dialect cannot flag.
const toolErrorPrefix = "Error: "

func chatCompletionsURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Call(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(o.buildRequest(req))
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	headers := map[string]string{}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}

	var resp Response
	err = o.retry.do(ctx, req.Status, func() error {
		respBody, err := post(ctx, o.client, o.endpoint, headers, payload)
		if err != nil {
			return err
		}
		var result openai.ChatCompletionResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if len(result.Choices) == 0 {
			return fmt.Errorf("%s: response has no choices", o.name)
		}
		resp = fromChatCompletion(result)
		return nil
	})
	return resp, err
}

func (o *OpenAI) buildRequest(req Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = o.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	out := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  convertMessages(req.System, req.Messages),
	}
	for _, t := range req.Tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		})
	}
	return out
}

// convertMessages flattens block messages into the function-calling dialect:
// the system prompt leads, tool results become "tool" messages placed right
// after the assistant turn that requested them.
func convertMessages(system string, msgs []Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		var texts []string
		var calls []openai.ToolCall
		var results []openai.ChatCompletionMessage
		for _, b := range m.Content {
			switch blk := b.(type) {
			case *TextBlock:
				if blk.Text != "" {
					texts = append(texts, blk.Text)
				}
			case *ToolUseBlock:
				calls = append(calls, openai.ToolCall{
					ID:   blk.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      blk.Name,
						Arguments: sanitizeArguments(blk.Input),
					},
				})
			case *ToolResultBlock:
				content := blk.Content
				if blk.IsError && !strings.HasPrefix(content, toolErrorPrefix) {
					content = toolErrorPrefix + content
				}
				results = append(results, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: blk.ToolUseID,
					Content:    content,
				})
			}
		}

		if m.Role == RoleAssistant {
			out = append(out, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   strings.Join(texts, "\n"),
				ToolCalls: calls,
			})
			continue
		}
		out = append(out, results...)
		if len(texts) > 0 {
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: strings.Join(texts, "\n")})
		}
	}
	return out
}

// sanitizeArguments returns raw re-encoded when it is a JSON object and "{}"
// for anything else.
func sanitizeArguments(raw json.RawMessage) string {
	var obj map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil || obj == nil {
		return "{}"
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func fromChatCompletion(r openai.ChatCompletionResponse) Response {
	choice := r.Choices[0]
	resp := Response{
		Usage: Usage{InputTokens: r.Usage.PromptTokens, OutputTokens: r.Usage.CompletionTokens},
	}
	if choice.Message.Content != "" {
		resp.Content = append(resp.Content, &TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.Content = append(resp.Content, &ToolUseBlock{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(sanitizeArguments(json.RawMessage(tc.Function.Arguments))),
		})
	}

	switch choice.FinishReason {
	case openai.FinishReasonStop:
		resp.StopReason = StopEndTurn
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		resp.StopReason = StopToolUse
	case openai.FinishReasonLength:
		resp.StopReason = StopMaxTokens
	default:
		resp.StopReason = StopUnknown
	}
	// Some compatible servers report "stop" even when they return tool calls.
	if len(choice.Message.ToolCalls) > 0 {
		resp.StopReason = StopToolUse
	}
	return resp
}
