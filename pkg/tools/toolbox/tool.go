package toolbox

import (
	"context"
	"encoding/json"

	"github.com/germanamz/assistant/pkg/chats/content"
)

// User describes the caller a turn is processed for.
type User struct {
	Email     string   `json:"email,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Request is the ambient context of the turn a tool runs in. Tools read it
// but never write conversation history through it.
type Request struct {
	ChatID   string
	Platform string
	Model    string
	AppURL   string
	User     *User
}

// Call is a single tool invocation.
type Call struct {
	ID      string
	Name    string
	Args    json.RawMessage
	Request Request
}

// Output is what a handler produces. A zero Status means success.
type Output struct {
	Status  content.Status
	Content string
	Data    any
}

// Text returns a successful Output with the given summary.
func Text(s string) Output {
	return Output{Status: content.StatusSuccess, Content: s}
}

// Failed returns an error-status Output with the given summary.
func Failed(s string) Output {
	return Output{Status: content.StatusError, Content: s}
}

// Handler executes a tool call.
type Handler func(ctx context.Context, call Call) (Output, error)

// Tool represents an executable tool with a name, description, JSON Schema, and handler.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}
