package domain

import "time"

// Role constants for conversation turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation. A tool-result turn carries the
// originating call id in ToolCalls[0].ID; an assistant turn carries the full
// set of requested calls in the order the model produced them.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ChatRequest is sent to an LLM provider.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

// ChatResponse is the normalized reply from an LLM provider. StopReason is
// the provider's own continuation marker ("tool_use", "tool_calls", "stop",
// "end_turn", ...); the orchestration loop is driven by IsFinal, not by the
// raw marker.
type ChatResponse struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Message    Message   `json:"message"`
	StopReason string    `json:"stop_reason,omitempty"`
	Usage      Usage     `json:"usage"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsFinal reports whether the response ends the orchestration loop.
// A response is final exactly when it requests no tool calls.
func (r *ChatResponse) IsFinal() bool {
	return len(r.Message.ToolCalls) == 0
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
