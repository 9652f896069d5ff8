// Package transport manages the session-oriented channel to the tool server:
// process spawn, initialize handshake, tool discovery, and serialized tool
// calls over a single stdio connection.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"bistro-ai/internal/catalog"
	"bistro-ai/internal/domain"
	"bistro-ai/internal/infra/config"
)

// State is the lifecycle state of the transport.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// mcpClient abstracts the MCP client for testability.
type mcpClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Transport owns one session channel to the tool server.
//
// The mutex does double duty: it guards state transitions and serializes
// CallTool, so at most one call is outstanding on the channel and Close
// waits for an in-flight call to finish.
type Transport struct {
	cfg    config.MCPConfig
	logger *slog.Logger

	// dial is swapped out in tests.
	dial func() (mcpClient, error)

	mu      sync.Mutex
	state   State
	client  mcpClient
	catalog *catalog.Catalog
}

// New creates a transport in the Disconnected state. Nothing is spawned
// until Connect.
func New(cfg config.MCPConfig, logger *slog.Logger) *Transport {
	t := &Transport{
		cfg:    cfg,
		logger: logger,
		state:  StateDisconnected,
	}
	t.dial = func() (mcpClient, error) {
		return mcpclient.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
	}
	return t
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect spawns the tool server, performs the initialize handshake, and
// discovers the tool catalog. It is one-shot: valid only from Disconnected.
// On any failure the transport returns to Disconnected and Connect may be
// retried.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateDisconnected {
		return domain.NewDomainError("Transport.Connect", domain.ErrTransportUnavailable,
			fmt.Sprintf("cannot connect from state %s", t.state))
	}
	t.state = StateConnecting

	connectCtx := ctx
	if t.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, t.cfg.ConnectTimeout)
		defer cancel()
	}

	client, err := t.dial()
	if err != nil {
		t.state = StateDisconnected
		return domain.NewDomainError("Transport.Connect", domain.ErrTransportUnavailable, err.Error())
	}

	if err := t.initialize(connectCtx, client); err != nil {
		client.Close()
		t.state = StateDisconnected
		return domain.NewDomainError("Transport.Connect", domain.ErrTransportUnavailable, err.Error())
	}

	cat, err := t.discover(connectCtx, client)
	if err != nil {
		client.Close()
		t.state = StateDisconnected
		return err
	}

	t.client = client
	t.catalog = cat
	t.state = StateReady
	t.logger.Info("transport connected", "command", t.cfg.Command, "tools", cat.Len())
	return nil
}

func (t *Transport) initialize(ctx context.Context, client mcpClient) error {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "bistro-ai",
		Version: "1.0.0",
	}

	ic, ok := client.(interface {
		Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	})
	if !ok {
		return nil
	}
	if _, err := ic.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

func (t *Transport) discover(ctx context.Context, client mcpClient) (*catalog.Catalog, error) {
	result, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, domain.NewDomainError("Transport.Connect", domain.ErrTransportUnavailable,
			fmt.Sprintf("list tools: %v", err))
	}

	schemas := make([]domain.ToolSchema, 0, len(result.Tools))
	for _, tool := range result.Tools {
		schemas = append(schemas, domain.ToolSchema{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toolParameters(tool),
		})
		t.logger.Debug("tool discovered", "tool", tool.Name)
	}

	return catalog.New(schemas)
}

// toolParameters converts an MCP tool's input schema to raw JSON.
func toolParameters(tool mcp.Tool) json.RawMessage {
	if len(tool.RawInputSchema) > 0 {
		return json.RawMessage(tool.RawInputSchema)
	}
	if tool.InputSchema.Properties != nil || tool.InputSchema.Required != nil {
		if data, err := json.Marshal(tool.InputSchema); err == nil {
			return data
		}
	}
	return nil
}

// Catalog returns the tool catalog discovered at connect time, or nil when
// the transport has never reached Ready.
func (t *Transport) Catalog() *catalog.Catalog {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.catalog
}

// CallTool executes one tool call on the channel. Calls are serialized;
// the per-call timeout comes from config. A logical tool failure is returned
// as a result payload with IsError set, not as an error. Only a genuine
// channel failure closes the transport; a call cut short by the timeout
// leaves it Ready.
func (t *Transport) CallTool(ctx context.Context, name string, args json.RawMessage) (*domain.ToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateReady {
		return nil, domain.NewDomainError("Transport.CallTool", domain.ErrNotConnected,
			fmt.Sprintf("state %s", t.state))
	}

	var parsed map[string]any
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return &domain.ToolResult{
				Content: fmt.Sprintf("invalid arguments: %v", err),
				IsError: true,
			}, nil
		}
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = name
	callReq.Params.Arguments = parsed

	// The call runs detached from the caller's cancellation: once a call is
	// on the wire it completes (or hits CallTimeout) rather than being
	// interrupted when the caller goes away, and the shared channel stays
	// consistent for everyone else.
	callCtx := context.WithoutCancel(ctx)
	if t.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, t.cfg.CallTimeout)
		defer cancel()
	}

	t.logger.Debug("tool call", "tool", name)

	result, err := t.client.CallTool(callCtx, callReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// The deadline cut the call short; the channel itself never
			// broke, so the transport stays Ready.
			return nil, domain.WrapOp("Transport.CallTool", err)
		}
		// The channel is unusable after a protocol failure.
		t.teardownLocked()
		return nil, domain.NewDomainError("Transport.CallTool", domain.ErrTransportBroken, err.Error())
	}

	return &domain.ToolResult{
		Content: extractContent(result),
		IsError: result.IsError,
	}, nil
}

// Close shuts the channel down. Idempotent; an in-flight call finishes
// first because Close takes the same mutex.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		return nil
	}
	t.teardownLocked()
	return nil
}

func (t *Transport) teardownLocked() {
	if t.client != nil {
		if err := t.client.Close(); err != nil {
			t.logger.Warn("transport close error", "error", err)
		}
		t.client = nil
	}
	t.state = StateClosed
}

// extractContent converts MCP CallToolResult content to a string.
func extractContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// envSlice converts a map of env vars to KEY=VALUE slices.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
