package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bistro-ai/internal/adapter/gateway"
	"bistro-ai/internal/adapter/llm"
	"bistro-ai/internal/infra/config"
	"bistro-ai/internal/infra/logger"
	"bistro-ai/internal/infra/tracer"
	"bistro-ai/internal/transport"
	"bistro-ai/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// LLM providers
	registry := llm.NewRegistry()
	for _, pc := range cfg.LLM.Providers {
		var err error
		switch pc.Type {
		case "anthropic":
			err = registry.Register(llm.NewAnthropicProvider(pc, log))
		case "openai":
			err = registry.Register(llm.NewOpenAIProvider(pc, log))
		}
		if err != nil {
			return fmt.Errorf("llm: %w", err)
		}
	}
	provider, err := registry.Get(cfg.LLM.DefaultProvider)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	log.Info("llm provider selected", "provider", provider.Name())

	// Tool transport: spawn the tool server and discover the catalog.
	tr := transport.New(cfg.MCP, log)
	if err := tr.Connect(ctx); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer tr.Close()

	// Sessions
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sessions := usecase.NewSessionRegistry(log)
	sessions.StartReaper(ctx, cfg.Sessions.IdleTTL, cfg.Sessions.ReapInterval)

	// Orchestrator
	var maxTokens int
	var temperature float64
	for _, pc := range cfg.LLM.Providers {
		if pc.Name == provider.Name() {
			maxTokens = pc.MaxTokens
			temperature = pc.Temperature
		}
	}
	agent := usecase.NewAgent(usecase.AgentDeps{
		LLM:           provider,
		Tools:         tr,
		Catalog:       tr.Catalog(),
		Logger:        log,
		MaxIterations: cfg.Agent.MaxIterations,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		MaxTokens:     maxTokens,
		Temperature:   temperature,
	})

	// HTTP front end
	gw := gateway.NewServer(cfg.Gateway.Addr, agent, sessions, tr.Catalog(), log)
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		log.Error("gateway shutdown error", "error", err)
	}
	return nil
}
