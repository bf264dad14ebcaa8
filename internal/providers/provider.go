package providers

import (
	"context"
	"encoding/json"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block is one content block of a message: *TextBlock, *ToolUseBlock or
// *ToolResultBlock.
type Block interface {
	block()
}

// TextBlock is plain text.
type TextBlock struct {
	Text string
}

// ToolUseBlock is the model asking for a tool to be run.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResultBlock answers the ToolUseBlock with the same ID.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (*TextBlock) block()       {}
func (*ToolUseBlock) block()    {}
func (*ToolResultBlock) block() {}

// Message is one turn of the conversation.
type Message struct {
	Role    Role
	Content []Block
}

// UserText returns a user message holding a single text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{&TextBlock{Text: text}}}
}

// Tool describes a callable tool to the model.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Request is one provider call.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []Message
	// Tools is nil when the model must answer without calling tools.
	Tools []Tool
	// Status, when set, receives progress text while a call is waiting out a
	// rate limit.
	Status func(string)
}

// StopReason says why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopUnknown   StopReason = "unknown"
)

// Usage is the token count a provider reported for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// Response is a provider's answer.
type Response struct {
	Content    []Block
	StopReason StopReason
	Usage      Usage
}

// Text returns the first text block, or "" if there is none.
func (r Response) Text() string {
	for _, b := range r.Content {
		if t, ok := b.(*TextBlock); ok {
			return t.Text
		}
	}
	return ""
}

// ToolUses returns the tool invocations in the response, in order.
func (r Response) ToolUses() []*ToolUseBlock {
	var out []*ToolUseBlock
	for _, b := range r.Content {
		if tu, ok := b.(*ToolUseBlock); ok {
			out = append(out, tu)
		}
	}
	return out
}

// Provider is a chat-completion backend.
type Provider interface {
	Call(ctx context.Context, req Request) (Response, error)
	Name() string
}

const defaultMaxTokens = 4096

func assistantInput(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage(`{}`)
	}
	return raw
}
