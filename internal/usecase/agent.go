// Package usecase holds the conversation orchestrator: the loop that
// alternates between the LLM backend and the tool channel until the model
// hands the turn back.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"bistro-ai/internal/catalog"
	"bistro-ai/internal/domain"
	"bistro-ai/internal/infra/tracer"
)

const defaultMaxIterations = 10

// ToolCaller executes one tool call on the session channel.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args json.RawMessage) (*domain.ToolResult, error)
}

// AgentDeps holds injected dependencies for the agent.
type AgentDeps struct {
	LLM           domain.LLMProvider
	Tools         ToolCaller
	Catalog       *catalog.Catalog
	Logger        *slog.Logger
	MaxIterations int
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64
}

// Agent orchestrates the model/tool exchange for one request at a time.
type Agent struct {
	deps AgentDeps
}

// NewAgent creates an agent with the given dependencies.
func NewAgent(deps AgentDeps) *Agent {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = defaultMaxIterations
	}
	return &Agent{deps: deps}
}

// HandleMessage processes one user message through the loop and returns the
// model's final text.
//
// History commits are step-atomic: the user turn is committed up front, and
// each subsequent step (assistant turn plus all of its tool results) is
// staged and appended as a unit only after every call in the step resolved.
// An aborted step leaves no trace in the session.
func (a *Agent) HandleMessage(ctx context.Context, session *Session, userMsg string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "agent.handle_message",
		trace.WithAttributes(tracer.StringAttr("session.id", session.ID)),
	)
	defer span.End()

	session.AddMessage(domain.Message{
		Role:    domain.RoleUser,
		Content: userMsg,
	})

	decls := a.deps.Catalog.Declarations()

	for iter := 0; iter < a.deps.MaxIterations; iter++ {
		resp, err := a.deps.LLM.Chat(ctx, domain.ChatRequest{
			Messages:    a.buildMessages(session),
			Tools:       decls,
			MaxTokens:   a.deps.MaxTokens,
			Temperature: a.deps.Temperature,
		})
		if err != nil {
			tracer.RecordError(span, err)
			return "", domain.WrapOp("Agent.HandleMessage", err)
		}

		if resp.IsFinal() {
			session.AddMessage(resp.Message)
			span.SetAttributes(tracer.IntAttr("agent.iterations", iter+1))
			tracer.SetOK(span)
			a.deps.Logger.Debug("turn complete",
				"session", session.ID,
				"iterations", iter+1,
				"stop_reason", resp.StopReason,
			)
			return resp.Message.Content, nil
		}

		// Validate every requested tool before executing any: a single
		// unknown name aborts the whole request with nothing committed.
		for _, call := range resp.Message.ToolCalls {
			if !a.deps.Catalog.Has(call.Name) {
				err := domain.NewDomainError("Agent.HandleMessage", domain.ErrUnknownTool, call.Name)
				tracer.RecordError(span, err)
				return "", err
			}
		}

		staged := make([]domain.Message, 0, 1+len(resp.Message.ToolCalls))
		staged = append(staged, resp.Message)

		for _, call := range resp.Message.ToolCalls {
			result, err := a.executeTool(ctx, session.ID, call)
			if err != nil {
				tracer.RecordError(span, err)
				return "", err
			}
			staged = append(staged, domain.Message{
				Role:    domain.RoleTool,
				Content: result.Content,
				ToolCalls: []domain.ToolCall{{
					ID:   call.ID,
					Name: call.Name,
				}},
				Timestamp: time.Now(),
			})
		}

		session.AddMessages(staged...)
	}

	err := domain.NewDomainError("Agent.HandleMessage", domain.ErrToolLoopExceeded,
		fmt.Sprintf("%d iterations", a.deps.MaxIterations))
	tracer.RecordError(span, err)
	return "", err
}

// buildMessages prepends the system prompt to the committed history.
func (a *Agent) buildMessages(session *Session) []domain.Message {
	history := session.Messages()
	if a.deps.SystemPrompt == "" {
		return history
	}
	msgs := make([]domain.Message, 0, len(history)+1)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: a.deps.SystemPrompt})
	return append(msgs, history...)
}

// executeTool runs a single call on the channel. Logical tool failures come
// back as payloads; only channel failures return an error.
func (a *Agent) executeTool(ctx context.Context, sessionID string, call domain.ToolCall) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, "agent.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	a.deps.Logger.Debug("executing tool", "session", sessionID, "tool", call.Name)

	result, err := a.deps.Tools.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	tracer.SetOK(span)
	return result, nil
}
