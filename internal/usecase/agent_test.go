package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bistro-ai/internal/catalog"
	"bistro-ai/internal/domain"
)

type mockLLM struct {
	responses []*domain.ChatResponse
	requests  []domain.ChatRequest
	err       error
}

func (m *mockLLM) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *mockLLM) Name() string { return "mock" }

type mockTools struct {
	results map[string]*domain.ToolResult
	err     error
	calls   []string
}

func (m *mockTools) CallTool(ctx context.Context, name string, args json.RawMessage) (*domain.ToolResult, error) {
	m.calls = append(m.calls, name)
	if m.err != nil {
		return nil, m.err
	}
	if r, ok := m.results[name]; ok {
		return r, nil
	}
	return &domain.ToolResult{Content: "{}"}, nil
}

func finalResponse(text string) *domain.ChatResponse {
	return &domain.ChatResponse{
		Message:    domain.Message{Role: domain.RoleAssistant, Content: text},
		StopReason: "end_turn",
	}
}

func toolResponse(calls ...domain.ToolCall) *domain.ChatResponse {
	return &domain.ChatResponse{
		Message:    domain.Message{Role: domain.RoleAssistant, ToolCalls: calls},
		StopReason: "tool_use",
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]domain.ToolSchema{
		{Name: "search_restaurants", Description: "Search for restaurants"},
		{Name: "place_order", Description: "Place an order"},
	})
	require.NoError(t, err)
	return cat
}

func newTestAgent(t *testing.T, llm *mockLLM, tools *mockTools, maxIter int) *Agent {
	t.Helper()
	return NewAgent(AgentDeps{
		LLM:           llm,
		Tools:         tools,
		Catalog:       testCatalog(t),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxIterations: maxIter,
		SystemPrompt:  "You are a food ordering assistant.",
		MaxTokens:     1024,
		Temperature:   0.2,
	})
}

func TestHandleMessageDirectAnswer(t *testing.T) {
	llm := &mockLLM{responses: []*domain.ChatResponse{finalResponse("We have four restaurants.")}}
	agent := newTestAgent(t, llm, &mockTools{}, 5)
	session := NewSession()

	out, err := agent.HandleMessage(context.Background(), session, "What restaurants are there?")
	require.NoError(t, err)
	assert.Equal(t, "We have four restaurants.", out)

	// History: user turn + final assistant turn.
	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)

	// The system prompt goes to the provider but is never persisted.
	require.NotEmpty(t, llm.requests)
	assert.Equal(t, domain.RoleSystem, llm.requests[0].Messages[0].Role)

	// Sampling settings reach every provider call.
	assert.Equal(t, 1024, llm.requests[0].MaxTokens)
	assert.Equal(t, 0.2, llm.requests[0].Temperature)
}

func TestHandleMessageToolRoundTrip(t *testing.T) {
	llm := &mockLLM{responses: []*domain.ChatResponse{
		toolResponse(domain.ToolCall{ID: "call_1", Name: "search_restaurants", Arguments: json.RawMessage(`{"query":"italian"}`)}),
		finalResponse("Pizza Palace serves Italian food."),
	}}
	tools := &mockTools{results: map[string]*domain.ToolResult{
		"search_restaurants": {Content: `[{"id": 1, "name": "Pizza Palace"}]`},
	}}
	agent := newTestAgent(t, llm, tools, 5)
	session := NewSession()

	out, err := agent.HandleMessage(context.Background(), session, "Find Italian food")
	require.NoError(t, err)
	assert.Equal(t, "Pizza Palace serves Italian food.", out)
	assert.Equal(t, []string{"search_restaurants"}, tools.calls)

	// History: user, assistant(tool call), tool result, final assistant.
	msgs := session.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, domain.RoleTool, msgs[2].Role)

	// The tool result is correlated to the call that requested it.
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].ToolCalls[0].ID)

	// The second provider call saw the tool result in history.
	require.Len(t, llm.requests, 2)
	last := llm.requests[1].Messages
	assert.Equal(t, domain.RoleTool, last[len(last)-1].Role)
}

func TestHandleMessageSequentialToolOrder(t *testing.T) {
	llm := &mockLLM{responses: []*domain.ChatResponse{
		toolResponse(
			domain.ToolCall{ID: "call_1", Name: "search_restaurants"},
			domain.ToolCall{ID: "call_2", Name: "place_order"},
		),
		finalResponse("Done."),
	}}
	tools := &mockTools{}
	agent := newTestAgent(t, llm, tools, 5)

	_, err := agent.HandleMessage(context.Background(), NewSession(), "Order Italian")
	require.NoError(t, err)

	// Tools run one at a time, in response order.
	assert.Equal(t, []string{"search_restaurants", "place_order"}, tools.calls)
}

func TestHandleMessageUnknownToolAborts(t *testing.T) {
	llm := &mockLLM{responses: []*domain.ChatResponse{
		toolResponse(
			domain.ToolCall{ID: "call_1", Name: "search_restaurants"},
			domain.ToolCall{ID: "call_2", Name: "cancel_order"},
		),
	}}
	tools := &mockTools{}
	agent := newTestAgent(t, llm, tools, 5)
	session := NewSession()

	_, err := agent.HandleMessage(context.Background(), session, "Cancel my order")
	assert.True(t, errors.Is(err, domain.ErrUnknownTool))

	// Validation happens before execution: no tool ran at all.
	assert.Empty(t, tools.calls)

	// The aborted step committed nothing; only the user turn remains.
	msgs := session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
}

func TestHandleMessageChannelFailureAborts(t *testing.T) {
	llm := &mockLLM{responses: []*domain.ChatResponse{
		toolResponse(domain.ToolCall{ID: "call_1", Name: "search_restaurants"}),
	}}
	tools := &mockTools{err: domain.NewDomainError("Transport.CallTool", domain.ErrTransportBroken, "pipe closed")}
	agent := newTestAgent(t, llm, tools, 5)
	session := NewSession()

	_, err := agent.HandleMessage(context.Background(), session, "Find food")
	assert.True(t, errors.Is(err, domain.ErrTransportBroken))

	// Partial step is discarded.
	require.Len(t, session.Messages(), 1)
}

func TestHandleMessageLoopBound(t *testing.T) {
	// The model asks for a tool on every turn and never finishes.
	llm := &mockLLM{responses: []*domain.ChatResponse{
		toolResponse(domain.ToolCall{ID: "call_1", Name: "search_restaurants"}),
	}}
	tools := &mockTools{}
	agent := newTestAgent(t, llm, tools, 3)
	session := NewSession()

	_, err := agent.HandleMessage(context.Background(), session, "Loop forever")
	assert.True(t, errors.Is(err, domain.ErrToolLoopExceeded))
	assert.Len(t, tools.calls, 3)

	// Completed steps stay committed: user + 3×(assistant, tool result).
	assert.Equal(t, 7, session.Len())
}

func TestHandleMessageProviderError(t *testing.T) {
	llm := &mockLLM{err: errors.New("backend down")}
	agent := newTestAgent(t, llm, &mockTools{}, 5)
	session := NewSession()

	_, err := agent.HandleMessage(context.Background(), session, "Hi")
	require.Error(t, err)
	require.Len(t, session.Messages(), 1)
}

func TestHandleMessageEmptyFinalTextIsValid(t *testing.T) {
	llm := &mockLLM{responses: []*domain.ChatResponse{finalResponse("")}}
	agent := newTestAgent(t, llm, &mockTools{}, 5)

	out, err := agent.HandleMessage(context.Background(), NewSession(), "say nothing")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}
