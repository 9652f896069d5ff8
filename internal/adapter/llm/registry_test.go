package llm

import (
	"context"
	"errors"
	"testing"

	"bistro-ai/internal/domain"
)

type fakeProvider struct{ name string }

func (f *fakeProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return &domain.ChatResponse{}, nil
}
func (f *fakeProvider) Name() string { return f.name }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeProvider{name: "anthropic"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	p, err := r.Get("anthropic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("Name = %q", p.Name())
	}
}

func TestRegistryDuplicateRegister(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&fakeProvider{name: "openai"})
	if err := r.Register(&fakeProvider{name: "openai"}); err == nil {
		t.Error("duplicate register should fail")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Errorf("err = %v, want ErrProviderNotFound", err)
	}
}
