package mcpclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sdkTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

func textResult(s string, isErr bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}, IsError: isErr}
}

func echoTool(name string) sdkTool {
	return sdkTool{
		tool: &mcp.Tool{Name: name, Description: "Echo " + name, InputSchema: json.RawMessage(`{"type":"object"}`)},
		handler: func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult(string(req.Params.Arguments), false), nil
		},
	}
}

func setupTestServer(t *testing.T, tools ...sdkTool) *MCPClient {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	for _, st := range tools {
		server.AddTool(st.tool, st.handler)
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client, err := newFromTransport(ctx, clientTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestListTools(t *testing.T) {
	client := setupTestServer(t, echoTool("search"), echoTool("lookup"))

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)

	byName := make(map[string]toolbox.Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}

	assert.Equal(t, "Echo search", byName["search"].Description)
	assert.NotNil(t, byName["lookup"].Handler)
}

func TestCallToolSuccess(t *testing.T) {
	client := setupTestServer(t, echoTool("echo"))

	out, err := client.CallTool(context.Background(), "echo", json.RawMessage(`{"msg":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, content.StatusSuccess, out.Status)
	assert.JSONEq(t, `{"msg":"hello"}`, out.Content)
}

func TestCallToolErrorResult(t *testing.T) {
	client := setupTestServer(t, sdkTool{
		tool: &mcp.Tool{Name: "fail", InputSchema: json.RawMessage(`{"type":"object"}`)},
		handler: func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("something went wrong", true), nil
		},
	})

	out, err := client.CallTool(context.Background(), "fail", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, content.StatusError, out.Status)
	assert.Equal(t, "something went wrong", out.Content)
}

func TestCallToolMultipleContent(t *testing.T) {
	client := setupTestServer(t, sdkTool{
		tool: &mcp.Tool{Name: "multi", InputSchema: json.RawMessage(`{"type":"object"}`)},
		handler: func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{
				&mcp.TextContent{Text: "line 1"},
				&mcp.TextContent{Text: "line 2"},
			}}, nil
		},
	})

	out, err := client.CallTool(context.Background(), "multi", nil)
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2", out.Content)
}

func TestImportedToolRunsThroughToolBox(t *testing.T) {
	client := setupTestServer(t, echoTool("echo"))

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)

	tb := toolbox.New()
	tb.Register(tools...)

	res := tb.Execute(context.Background(), content.ToolCall{ID: "c1", Name: "echo", Arguments: `{"a":1}`}, toolbox.Request{})
	assert.False(t, res.IsError())
	assert.JSONEq(t, `{"a":1}`, res.Content)
}

func TestServerConfigValidate(t *testing.T) {
	assert.NoError(t, ServerConfig{Name: "a", Command: "x"}.Validate())
	assert.NoError(t, ServerConfig{Name: "a", URL: "http://x"}.Validate())
	assert.Error(t, ServerConfig{Name: "a"}.Validate())
	assert.Error(t, ServerConfig{Name: "a", Command: "x", URL: "http://x"}.Validate())
	assert.Error(t, ServerConfig{Command: "x"}.Validate())
}

func TestNewSSE_InvalidEndpoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewSSE(ctx, "http://127.0.0.1:1/invalid")
	assert.Error(t, err)
}

func TestFromSDKTool(t *testing.T) {
	tool, err := fromSDKTool(&mcp.Tool{
		Name:        "test",
		Description: "A test tool",
		InputSchema: map[string]any{"type": "object", "required": []string{"name"}},
	}, &MCPClient{})
	require.NoError(t, err)
	assert.Equal(t, "test", tool.Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.InputSchema, &schema))
	assert.Equal(t, "object", schema["type"])
}
