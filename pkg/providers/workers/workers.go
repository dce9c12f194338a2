// Package workers provides a Sender for Workers AI models reached through
// the AI gateway.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the AI gateway origin.
	DefaultBaseURL = "https://gateway.ai.cloudflare.com"

	// GatewayID names the gateway every request is routed through.
	GatewayID = "llm-assistant"

	// LogIDHeader carries the gateway's log id for a request.
	LogIDHeader = "cf-aig-log-id"
)

var _ modeladapter.Sender = (*Adapter)(nil)

// Adapter implements modeladapter.Sender for the Workers AI gateway route.
type Adapter struct {
	modeladapter.ModelAdapter

	AccountID string
	CacheTTL  int // Seconds; zero leaves gateway caching to its defaults.
}

// New creates an Adapter for the given account. An empty baseURL uses
// DefaultBaseURL.
func New(baseURL, accountID, apiToken string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{AccountID: accountID}
	a.Provider = "workers"
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{Key: apiToken}

	return a
}

// Path returns the gateway path of an upstream model.
func (a *Adapter) Path(model string) string {
	return fmt.Sprintf("/v1/%s/%s/workers-ai/%s", a.AccountID, GatewayID, model)
}

// Send posts the conversation and normalizes the reply.
func (a *Adapter) Send(ctx context.Context, req modeladapter.Request) (modeladapter.Response, error) {
	extra := http.Header{}
	if a.CacheTTL > 0 {
		extra.Set("cf-aig-cache-ttl", fmt.Sprint(a.CacheTTL))
	}

	var resp apiResponse
	header, err := a.PostJSONHeader(ctx, a.Path(req.Model), buildRequest(req), &resp, extra)
	if err != nil {
		return modeladapter.Response{}, fmt.Errorf("workers: %w", err)
	}

	if !resp.Success {
		msg := "request was not successful"
		if len(resp.Errors) > 0 {
			msg = resp.Errors[0].Message
		}
		return modeladapter.Response{}, &modeladapter.ProviderError{
			Provider: a.Provider,
			Message:  msg,
		}
	}

	out := modeladapter.Response{
		Text:  strings.TrimSpace(resp.Result.Response),
		LogID: header.Get(LogIDHeader),
		Usage: usage.TokenCount{
			InputTokens:  resp.Result.Usage.PromptTokens,
			OutputTokens: resp.Result.Usage.CompletionTokens,
		},
	}

	for _, tc := range resp.Result.ToolCalls {
		args := string(tc.Arguments)
		if args == "" || args == "null" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, content.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      tc.Name,
			Arguments: args,
		})
	}

	return out, nil
}

// --- request types ---

type apiRequest struct {
	Messages          []apiMessage `json:"messages"`
	Image             []int        `json:"image,omitempty"`
	Tools             []apiToolDef `json:"tools,omitempty"`
	Temperature       *float64     `json:"temperature,omitempty"`
	TopP              *float64     `json:"top_p,omitempty"`
	TopK              *int         `json:"top_k,omitempty"`
	MaxTokens         *int         `json:"max_tokens,omitempty"`
	Seed              *int         `json:"seed,omitempty"`
	RepetitionPenalty *float64     `json:"repetition_penalty,omitempty"`
	FrequencyPenalty  *float64     `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float64     `json:"presence_penalty,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// --- response types ---

type apiResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Result struct {
		Response  string `json:"response"`
		ToolCalls []struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"tool_calls"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	} `json:"result"`
}

// --- conversion helpers ---

func buildRequest(r modeladapter.Request) apiRequest {
	req := apiRequest{
		Temperature:       r.Params.Temperature,
		TopP:              r.Params.TopP,
		TopK:              r.Params.TopK,
		MaxTokens:         r.Params.MaxTokens,
		Seed:              r.Params.Seed,
		RepetitionPenalty: r.Params.RepetitionPenalty,
		FrequencyPenalty:  r.Params.FrequencyPenalty,
		PresencePenalty:   r.Params.PresencePenalty,
	}

	if r.System != "" {
		req.Messages = append(req.Messages, apiMessage{Role: "system", Content: r.System})
	}

	for _, m := range r.Messages {
		if m.Role == role.System {
			continue
		}

		for _, p := range m.Parts {
			switch v := p.(type) {
			case content.Image:
				// Vision models take the most recent inline image as a byte array.
				if len(v.Data) > 0 {
					req.Image = bytesToInts(v.Data)
				}
			case content.ToolResult:
				req.Messages = append(req.Messages, apiMessage{Role: "tool", Content: toolResultText(v)})
			}
		}

		text := m.TextContent()
		if strings.TrimSpace(text) == "" {
			for _, tc := range m.ToolCalls() {
				text += fmt.Sprintf("Calling %s with %s\n", tc.Name, tc.Arguments)
			}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		msgRole := "user"
		if m.Role == role.Assistant {
			msgRole = "assistant"
		}
		req.Messages = append(req.Messages, apiMessage{Role: msgRole, Content: text})
	}

	for _, t := range r.Tools {
		params := t.InputSchema
		if params == nil {
			params = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, apiToolDef{Name: t.Name, Description: t.Description, Parameters: params})
	}

	return req
}

func toolResultText(r content.ToolResult) string {
	if len(r.Data) > 0 {
		return fmt.Sprintf("%s: %s\n%s", r.Name, r.Content, r.Data)
	}
	return fmt.Sprintf("%s: %s", r.Name, r.Content)
}

func bytesToInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
