// bistro-mcp is the restaurant tool server. It speaks MCP over stdio and is
// normally spawned by the agent process.
package main

import (
	"fmt"
	"os"

	"bistro-ai/internal/infra/config"
	"bistro-ai/internal/infra/logger"
	"bistro-ai/internal/restaurant"
)

func main() {
	// stdout carries the protocol; logs must go to stderr.
	log, logCloser, err := logger.New(config.LoggerConfig{
		Level:  envOr("BISTRO_LOGGER_LEVEL", "info"),
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser()

	srv := restaurant.NewServer(restaurant.NewStore(), log)
	log.Info("tool server starting")
	if err := srv.ServeStdio(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
