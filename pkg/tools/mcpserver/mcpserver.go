// Package mcpserver exposes a toolbox over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPServer serves the tools of a ToolBox over MCP. Calls go through the
// ToolBox executor, so argument checks and panic recovery apply.
type MCPServer struct {
	server *mcp.Server
	req    toolbox.Request
}

// New creates a new MCPServer with the given name and version. Platform is
// reported to tools as the request platform.
func New(name, version, platform string) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, nil)

	return &MCPServer{server: server, req: toolbox.Request{Platform: platform}}
}

// Register exposes every tool currently in tb.
func (s *MCPServer) Register(tb *toolbox.ToolBox) {
	for _, t := range tb.Tools() {
		s.server.AddTool(toSDKTool(t), s.handler(tb, t.Name))
	}
}

// Serve starts serving MCP requests. It reads requests from in and writes
// responses to out. It blocks until ctx is cancelled or the transport closes.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}

	return s.run(ctx, transport)
}

func (s *MCPServer) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func toSDKTool(t toolbox.Tool) *mcp.Tool {
	schema := t.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	return &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// handler maps an MCP call onto ToolBox.Execute. Structured data, when
// present, follows the summary as a second text item.
func (s *MCPServer) handler(tb *toolbox.ToolBox, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := "{}"
		if len(req.Params.Arguments) > 0 {
			args = string(req.Params.Arguments)
		}

		res := tb.Execute(ctx, content.ToolCall{ID: uuid.NewString(), Name: name, Arguments: args}, s.req)

		out := &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Content}},
			IsError: res.IsError(),
		}
		if len(res.Data) > 0 {
			out.Content = append(out.Content, &mcp.TextContent{Text: string(res.Data)})
		}

		return out, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
