package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	LLM      LLMConfig      `yaml:"llm"`
	MCP      MCPConfig      `yaml:"mcp"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
}

// AgentConfig holds orchestration loop settings.
type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`
	SystemPrompt  string        `yaml:"system_prompt"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string           `yaml:"default_provider"`
	Providers       []ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "anthropic" or "openai"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// MCPConfig configures the tool-server connection. The server is spawned as
// a child process and reached over stdio.
type MCPConfig struct {
	Command        string            `yaml:"command"`
	Args           []string          `yaml:"args,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout"`
	CallTimeout    time.Duration     `yaml:"call_timeout"`
}

// GatewayConfig holds HTTP API settings.
type GatewayConfig struct {
	Addr string `yaml:"addr"`
}

// SessionsConfig holds session registry settings.
type SessionsConfig struct {
	IdleTTL      time.Duration `yaml:"idle_ttl"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations: 10,
			Timeout:       120 * time.Second,
			SystemPrompt:  "You are a food-ordering assistant. Help the user find restaurants, browse menus, place cash-on-delivery orders, and check order status.",
		},
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
			Providers: []ProviderConfig{
				{Name: "anthropic", Type: "anthropic", Model: "claude-sonnet-4-20250514"},
				{Name: "openai", Type: "openai", Model: "gpt-4o"},
			},
		},
		MCP: MCPConfig{
			Command:        "bistro-mcp",
			ConnectTimeout: 15 * time.Second,
			CallTimeout:    30 * time.Second,
		},
		Gateway: GatewayConfig{
			Addr: ":8080",
		},
		Sessions: SessionsConfig{
			IdleTTL:      30 * time.Minute,
			ReapInterval: 5 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies BISTRO_* environment variables on top of cfg.
// Provider API keys additionally fall back to the vendor-conventional
// ANTHROPIC_API_KEY / OPENAI_API_KEY variables.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BISTRO_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("BISTRO_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("BISTRO_MCP_COMMAND"); v != "" {
		cfg.MCP.Command = v
	}
	if v := os.Getenv("BISTRO_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("BISTRO_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("BISTRO_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		if p.APIKey != "" {
			continue
		}
		switch p.Type {
		case "anthropic":
			p.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// Validate checks the configuration for inconsistencies that would only
// surface later as confusing runtime failures.
func Validate(cfg *Config) error {
	if cfg.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", cfg.Agent.MaxIterations)
	}

	if strings.TrimSpace(cfg.MCP.Command) == "" {
		return fmt.Errorf("mcp.command is required")
	}

	names := make(map[string]bool, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("llm provider with empty name")
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate llm provider %q", p.Name)
		}
		names[p.Name] = true
		switch p.Type {
		case "anthropic", "openai":
		default:
			return fmt.Errorf("llm provider %q: unsupported type %q", p.Name, p.Type)
		}
	}

	if !names[cfg.LLM.DefaultProvider] {
		return fmt.Errorf("llm.default_provider %q is not a configured provider", cfg.LLM.DefaultProvider)
	}

	if cfg.Sessions.IdleTTL <= 0 {
		return fmt.Errorf("sessions.idle_ttl must be positive")
	}

	return nil
}
