package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorMessage(t *testing.T) {
	err := NewDomainError("Transport.CallTool", ErrTransportBroken, "pipe closed")
	want := "Transport.CallTool: pipe closed: tool transport broken"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noDetail := NewDomainError("Agent.HandleMessage", ErrToolLoopExceeded, "")
	if noDetail.Error() != "Agent.HandleMessage: tool loop iteration limit exceeded" {
		t.Errorf("Error() = %q", noDetail.Error())
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Registry.Get", ErrProviderNotFound, "groq")
	if !errors.Is(err, ErrProviderNotFound) {
		t.Error("errors.Is should match the wrapped sentinel")
	}
}

func TestWrapOp(t *testing.T) {
	if WrapOp("op", nil) != nil {
		t.Error("WrapOp(nil) should be nil")
	}
	err := WrapOp("connect", ErrTransportUnavailable)
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Error("wrapped error should match sentinel")
	}
}

func TestErrorCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{nil, CodeUnknown},
		{ErrUnknownTool, CodeUnknownTool},
		{NewDomainError("op", ErrToolLoopExceeded, ""), CodeToolLoopExceeded},
		{fmt.Errorf("outer: %w", ErrTransportBroken), CodeTransportBroken},
		{errors.New("something else"), CodeUnknown},
	}
	for _, tc := range cases {
		if got := ErrorCodeOf(tc.err); got != tc.want {
			t.Errorf("ErrorCodeOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestChatResponseIsFinal(t *testing.T) {
	final := &ChatResponse{Message: Message{Role: RoleAssistant, Content: "done"}}
	if !final.IsFinal() {
		t.Error("response without tool calls must be final")
	}

	pending := &ChatResponse{Message: Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "tc_1", Name: "search_restaurants"}},
	}}
	if pending.IsFinal() {
		t.Error("response with tool calls must not be final")
	}
}
