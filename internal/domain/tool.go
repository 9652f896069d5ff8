package domain

import "encoding/json"

// ToolSchema describes a tool for the LLM function-calling protocol.
// Parameters is a JSON Schema object. Immutable once discovered.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is an LLM's request to invoke a tool. The ID is opaque and
// assigned by the model backend; it correlates the eventual result.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool. A logical failure on the
// tool side (not-found, rejected input) is carried in Content with IsError
// set; it is not a transport error and never aborts the loop. Correlation
// with the originating call happens at the conversation layer, which holds
// the ToolCall it dispatched.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}
