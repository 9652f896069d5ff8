package domain

import "context"

// LLMProvider is the adapter contract for a model backend. Implementations
// hide the backend's wire shape: they encode the normalized history and tool
// declarations into the provider's format and decode the reply back into a
// ChatResponse. A session is bound to one provider for its lifetime.
type LLMProvider interface {
	// Chat sends one turn and returns the normalized response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "anthropic", "openai").
	Name() string
}
