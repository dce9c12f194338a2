// Package openai provides a Sender for OpenAI-compatible chat completion
// APIs. One adapter type serves OpenAI, xAI Grok, Mistral and Perplexity;
// they differ only in base URL and provider tag.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
)

// Known base URLs. go-openai appends "/chat/completions".
const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	GrokBaseURL       = "https://api.x.ai/v1"
	MistralBaseURL    = "https://api.mistral.ai/v1"
	PerplexityBaseURL = "https://api.perplexity.ai"
)

var _ modeladapter.Sender = (*Adapter)(nil)

// Config configures an Adapter.
type Config struct {
	Provider   string // Tag used in errors; defaults to "openai".
	APIKey     string
	BaseURL    string // Defaults to OpenAIBaseURL.
	HTTPClient *http.Client
	// Citations makes the adapter read the non-standard top-level
	// "citations" array that search models return.
	Citations bool
}

// Adapter implements modeladapter.Sender over go-openai.
type Adapter struct {
	provider  string
	citations bool
	client    *goopenai.Client
}

// New creates an Adapter.
func New(cfg Config) *Adapter {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Citations {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		clone := *httpClient
		clone.Transport = &citationTransport{base: base}
		httpClient = &clone
	}
	apiCfg.HTTPClient = httpClient

	return &Adapter{
		provider:  cfg.Provider,
		citations: cfg.Citations,
		client:    goopenai.NewClientWithConfig(apiCfg),
	}
}

// Provider returns the adapter's provider tag.
func (a *Adapter) Provider() string { return a.provider }

// Send sends the conversation as a chat completion and normalizes the reply.
func (a *Adapter) Send(ctx context.Context, req modeladapter.Request) (modeladapter.Response, error) {
	var sink *citationSink
	if a.citations {
		sink = &citationSink{}
		ctx = context.WithValue(ctx, citationKey{}, sink)
	}

	resp, err := a.client.CreateChatCompletion(ctx, buildRequest(req))
	if err != nil {
		return modeladapter.Response{}, fmt.Errorf("%s: %w", a.provider, a.providerError(err))
	}

	if len(resp.Choices) == 0 {
		return modeladapter.Response{}, fmt.Errorf("%s: %w", a.provider,
			&modeladapter.ProviderError{Provider: a.provider, Message: "empty choices in response"})
	}

	choice := resp.Choices[0].Message
	out := modeladapter.Response{
		Text:  strings.TrimSpace(choice.Content),
		LogID: resp.ID,
		Usage: usage.TokenCount{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	for _, tc := range choice.ToolCalls {
		args := tc.Function.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, content.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	if sink != nil {
		out.Citations = sink.citations
	}

	return out, nil
}

func (a *Adapter) providerError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &modeladapter.ProviderError{
			Provider:   a.provider,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &modeladapter.ProviderError{
			Provider:   a.provider,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	return &modeladapter.ProviderError{Provider: a.provider, Message: "request failed", Err: err}
}

// --- conversion helpers ---

func buildRequest(r modeladapter.Request) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model: r.Model,
		Seed:  r.Params.Seed,
	}

	if r.Params.Temperature != nil {
		req.Temperature = float32(*r.Params.Temperature)
	}
	if r.Params.TopP != nil {
		req.TopP = float32(*r.Params.TopP)
	}
	if r.Params.MaxTokens != nil {
		req.MaxTokens = *r.Params.MaxTokens
	}
	if r.Params.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*r.Params.FrequencyPenalty)
	}
	if r.Params.PresencePenalty != nil {
		req.PresencePenalty = float32(*r.Params.PresencePenalty)
	}

	if r.System != "" {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: r.System,
		})
	}

	for _, m := range r.Messages {
		req.Messages = append(req.Messages, convertMessage(m)...)
	}

	for _, t := range r.Tools {
		params := t.InputSchema
		if params == nil {
			params = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	return req
}

func convertMessage(m message.Message) []goopenai.ChatCompletionMessage {
	switch m.Role {
	case role.System:
		return nil
	case role.Tool:
		// Each tool result is its own message.
		var out []goopenai.ChatCompletionMessage
		for _, tr := range m.ToolResults() {
			text := tr.Content
			if len(tr.Data) > 0 {
				text += "\n" + string(tr.Data)
			}
			out = append(out, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    text,
				ToolCallID: tr.ToolCallID,
			})
		}
		return out
	case role.Assistant:
		msg := goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleAssistant,
			Content: m.TextContent(),
		}
		for _, tc := range m.ToolCalls() {
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		if msg.Content == "" && len(msg.ToolCalls) == 0 {
			return nil
		}
		return []goopenai.ChatCompletionMessage{msg}
	default:
		return []goopenai.ChatCompletionMessage{userMessage(m)}
	}
}

func userMessage(m message.Message) goopenai.ChatCompletionMessage {
	msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}

	var images []goopenai.ChatMessagePart
	for _, p := range m.Parts {
		img, ok := p.(content.Image)
		if !ok {
			continue
		}
		u := img.URL
		if u == "" {
			u = "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
		}
		images = append(images, goopenai.ChatMessagePart{
			Type:     goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{URL: u},
		})
	}

	if len(images) == 0 {
		msg.Content = m.TextContent()
		return msg
	}

	if text := m.TextContent(); text != "" {
		msg.MultiContent = append(msg.MultiContent, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeText,
			Text: text,
		})
	}
	msg.MultiContent = append(msg.MultiContent, images...)

	return msg
}
