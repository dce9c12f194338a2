// Package tools groups the tool layer of the assistant.
//
// Sub-packages:
//   - [github.com/germanamz/assistant/pkg/tools/toolbox]: the Tool type and the ToolBox registry and executor
//   - [github.com/germanamz/assistant/pkg/tools/builtin]: weather and media generation tools
//   - [github.com/germanamz/assistant/pkg/tools/mcpclient]: imports tools from external MCP servers
//   - [github.com/germanamz/assistant/pkg/tools/mcpserver]: exposes a ToolBox over MCP
//
// The mcpclient and mcpserver packages are thin wrappers around the official
// MCP Go SDK (github.com/modelcontextprotocol/go-sdk).
package tools
