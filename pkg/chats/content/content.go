// Package content defines the typed parts a message is made of.
package content

import "encoding/json"

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// Image references an image by URL or carries it inline.
type Image struct {
	URL       string
	Data      []byte
	MediaType string
}

func (i Image) PartKind() string { return "image" }

// Audio references an audio clip by URL or carries it inline.
type Audio struct {
	URL       string
	Data      []byte
	MediaType string
}

func (a Audio) PartKind() string { return "audio" }

// ToolCall represents an assistant's request to invoke a tool.
// Arguments holds the raw JSON object as emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// Status is the outcome of a tool invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ToolResult holds the output of a tool invocation. Content is the
// human-readable summary fed back to the model; Data is the structured payload.
type ToolResult struct {
	ToolCallID string
	Name       string
	Status     Status
	Content    string
	Data       json.RawMessage
}

func (tr ToolResult) PartKind() string { return "tool_result" }

// IsError reports whether the invocation failed.
func (tr ToolResult) IsError() bool { return tr.Status == StatusError }
