// Package anthropic provides a Sender for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
)

const (
	messagesPath = "/v1/messages"

	// DefaultMaxTokens is the response budget when the request sets none.
	DefaultMaxTokens = 1024
)

var _ modeladapter.Sender = (*Adapter)(nil)

// Adapter implements modeladapter.Sender for the Anthropic Messages API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter. baseURL is either "https://api.anthropic.com" or a
// gateway URL ending in "/anthropic" (no trailing slash).
func New(baseURL, apiKey string) *Adapter {
	a := &Adapter{}
	a.Provider = "anthropic"
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-api-key",
	}
	a.MaxTokens = DefaultMaxTokens
	a.Headers = map[string]string{
		"anthropic-version": "2023-06-01",
	}

	return a
}

// Send posts the conversation and normalizes the reply.
func (a *Adapter) Send(ctx context.Context, req modeladapter.Request) (modeladapter.Response, error) {
	var resp apiResponse
	if err := a.PostJSON(ctx, messagesPath, a.buildRequest(req), &resp); err != nil {
		return modeladapter.Response{}, fmt.Errorf("anthropic: %w", err)
	}

	return parseResponse(resp), nil
}

// --- request types ---

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	TopK        *int         `json:"top_k,omitempty"`
	Tools       []apiToolDef `json:"tools,omitempty"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type apiContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Source    *apiSource      `json:"source,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type apiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// --- response types ---

type apiResponse struct {
	Content    []apiContent `json:"content"`
	StopReason string       `json:"stop_reason"`
	Usage      apiUsage     `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(r modeladapter.Request) apiRequest {
	req := apiRequest{
		Model:       r.Model,
		MaxTokens:   r.Params.MaxTokensOr(a.MaxTokens),
		System:      r.System,
		Temperature: r.Params.Temperature,
		TopP:        r.Params.TopP,
		TopK:        r.Params.TopK,
	}

	for _, t := range r.Tools {
		schema := t.InputSchema
		if schema == nil {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, apiToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	for _, m := range r.Messages {
		if m.Role == role.System {
			continue
		}
		appendMessage(&req.Messages, m)
	}

	return req
}

func appendMessage(msgs *[]apiMessage, m message.Message) {
	for _, p := range m.Parts {
		block := partToBlock(p)
		if block == nil {
			continue
		}

		msgRole := "user"
		if m.Role == role.Assistant {
			msgRole = "assistant"
		}

		// Consecutive blocks of one role share a message.
		if n := len(*msgs); n > 0 && (*msgs)[n-1].Role == msgRole {
			(*msgs)[n-1].Content = append((*msgs)[n-1].Content, *block)
			continue
		}

		*msgs = append(*msgs, apiMessage{Role: msgRole, Content: []apiContent{*block}})
	}
}

func partToBlock(p content.Part) *apiContent {
	switch v := p.(type) {
	case content.Text:
		if strings.TrimSpace(v.Text) == "" {
			return nil
		}
		return &apiContent{Type: "text", Text: v.Text}
	case content.Image:
		if v.URL != "" {
			return &apiContent{Type: "image", Source: &apiSource{Type: "url", URL: v.URL}}
		}
		return &apiContent{Type: "image", Source: &apiSource{
			Type:      "base64",
			MediaType: v.MediaType,
			Data:      base64.StdEncoding.EncodeToString(v.Data),
		}}
	case content.ToolCall:
		input := json.RawMessage(v.Arguments)
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return &apiContent{Type: "tool_use", ID: v.ID, Name: v.Name, Input: input}
	case content.ToolResult:
		return &apiContent{Type: "tool_result", ToolUseID: v.ToolCallID, Content: v.Content, IsError: v.IsError()}
	default:
		return nil
	}
}

func parseResponse(resp apiResponse) modeladapter.Response {
	out := modeladapter.Response{
		Usage: usage.TokenCount{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, content.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	out.Text = strings.Join(texts, " ")

	return out
}
