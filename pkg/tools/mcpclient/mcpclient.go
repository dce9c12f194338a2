// Package mcpclient imports the tools of external MCP servers into a toolbox.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/germanamz/assistant/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerConfig describes one external MCP server. Exactly one of Command or
// URL must be set.
type ServerConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	URL     string   `yaml:"url"`
}

// Validate checks the transport settings.
func (c ServerConfig) Validate() error {
	if c.Name == "" {
		return errors.New("mcp server: name is required")
	}
	if (c.Command == "") == (c.URL == "") {
		return fmt.Errorf("mcp server %q: exactly one of command or url is required", c.Name)
	}
	return nil
}

// MCPClient communicates with an MCP server using the official MCP Go SDK.
type MCPClient struct {
	session *mcp.ClientSession
}

// Connect opens a client for cfg using a command or SSE transport.
func Connect(ctx context.Context, cfg ServerConfig) (*MCPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.URL != "" {
		return NewSSE(ctx, cfg.URL)
	}
	return New(ctx, cfg.Command, cfg.Args...)
}

// New spawns an MCP server process and returns a connected client.
func New(ctx context.Context, command string, args ...string) (*MCPClient, error) {
	transport := &mcp.CommandTransport{
		Command: exec.Command(command, args...), //nolint:gosec // command comes from operator config
	}

	return newFromTransport(ctx, transport)
}

// NewSSE connects to an SSE-based MCP server at the given URL.
func NewSSE(ctx context.Context, url string) (*MCPClient, error) {
	return newFromTransport(ctx, &mcp.SSEClientTransport{Endpoint: url})
}

func newFromTransport(ctx context.Context, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "assistant",
		Version: "0.1.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: connect: %w", err)
	}

	return &MCPClient{session: session}, nil
}

// ListTools fetches the server's tools as toolbox.Tool values whose handlers
// call back through CallTool.
func (c *MCPClient) ListTools(ctx context.Context) ([]toolbox.Tool, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools: %w", err)
	}

	tools := make([]toolbox.Tool, 0, len(result.Tools))
	for _, sdkTool := range result.Tools {
		t, err := fromSDKTool(sdkTool, c)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: convert tool %q: %w", sdkTool.Name, err)
		}
		tools = append(tools, t)
	}

	return tools, nil
}

// CallTool calls a named tool on the server. A tool-level failure is
// reported as an error-status Output, not as an error.
func (c *MCPClient) CallTool(ctx context.Context, name string, arguments json.RawMessage) (toolbox.Output, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return toolbox.Output{}, fmt.Errorf("mcpclient: unmarshal arguments: %w", err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return toolbox.Output{}, fmt.Errorf("mcpclient: call tool: %w", err)
	}

	text := extractText(result)
	if result.IsError {
		return toolbox.Failed(text), nil
	}

	return toolbox.Text(text), nil
}

// Close terminates the session; for command transports the SDK also stops
// the subprocess.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

func fromSDKTool(sdkTool *mcp.Tool, c *MCPClient) (toolbox.Tool, error) {
	schemaBytes, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return toolbox.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	name := sdkTool.Name

	return toolbox.Tool{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schemaBytes),
		Handler: func(ctx context.Context, call toolbox.Call) (toolbox.Output, error) {
			return c.CallTool(ctx, name, call.Args)
		},
	}, nil
}

func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}
