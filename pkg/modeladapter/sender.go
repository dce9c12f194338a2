package modeladapter

import (
	"context"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
)

// Sender sends a conversation to one upstream provider and returns its reply
// in normalized form. Implementations must not retry.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, req Request) (Response, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Params are the sampling parameters of a request. Nil fields are left to
// the provider's defaults; adapters drop the ones their API does not know.
type Params struct {
	Temperature       *float64 `json:"temperature,omitempty" yaml:"temperature"`
	TopP              *float64 `json:"top_p,omitempty" yaml:"top_p"`
	TopK              *int     `json:"top_k,omitempty" yaml:"top_k"`
	MaxTokens         *int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Seed              *int     `json:"seed,omitempty" yaml:"seed"`
	FrequencyPenalty  *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty"`
	PresencePenalty   *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty" yaml:"repetition_penalty"`
}

// Settings returns the parameters that are set, keyed by their wire names.
func (p Params) Settings() map[string]any {
	out := make(map[string]any)
	if p.Temperature != nil {
		out["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		out["top_p"] = *p.TopP
	}
	if p.TopK != nil {
		out["top_k"] = *p.TopK
	}
	if p.MaxTokens != nil {
		out["max_tokens"] = *p.MaxTokens
	}
	if p.Seed != nil {
		out["seed"] = *p.Seed
	}
	if p.FrequencyPenalty != nil {
		out["frequency_penalty"] = *p.FrequencyPenalty
	}
	if p.PresencePenalty != nil {
		out["presence_penalty"] = *p.PresencePenalty
	}
	if p.RepetitionPenalty != nil {
		out["repetition_penalty"] = *p.RepetitionPenalty
	}
	return out
}

// MaxTokensOr returns the requested response budget or def.
func (p Params) MaxTokensOr(def int) int {
	if p.MaxTokens != nil && *p.MaxTokens > 0 {
		return *p.MaxTokens
	}
	return def
}

// Request is a provider-agnostic completion request. Model is the upstream
// model name; Messages never contain the system prompt.
type Request struct {
	Model    string
	System   string
	Messages []message.Message
	Params   Params
	Tools    []toolbox.Tool
}

// Response is the normalized reply of any provider.
type Response struct {
	Text      string
	ToolCalls []content.ToolCall
	Usage     usage.TokenCount
	Citations []string
	LogID     string
}

// HasToolCalls reports whether the model asked for tools to run.
func (r Response) HasToolCalls() bool { return len(r.ToolCalls) > 0 }
