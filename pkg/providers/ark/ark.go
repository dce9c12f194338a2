// Package ark provides a Sender for Volcengine Ark models through an eino
// chat model.
package ark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	arkmodel "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
)

const provider = "ark"

// DefaultBaseURL is the Ark endpoint used when the config names none.
const DefaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"

var _ modeladapter.Sender = (*Adapter)(nil)

// Config holds Ark credentials. Either APIKey or the AccessKey/SecretKey
// pair must be set.
type Config struct {
	BaseURL   string `yaml:"base_url"`
	Region    string `yaml:"region"`
	APIKey    string `yaml:"api_key"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Enabled reports whether the credentials are complete.
func (c Config) Enabled() bool {
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

// Factory builds the chat model for one upstream model name.
type Factory func(ctx context.Context, upstream string) (model.BaseChatModel, error)

// Adapter implements modeladapter.Sender. Ark binds the model name at
// construction, so one chat model is kept per upstream name.
type Adapter struct {
	factory Factory

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

// New creates an Adapter backed by eino-ext's Ark chat model.
func New(cfg Config) (*Adapter, error) {
	if !cfg.Enabled() {
		return nil, errors.New("ark: api_key or access_key/secret_key are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	return NewWithFactory(func(ctx context.Context, upstream string) (model.BaseChatModel, error) {
		return arkmodel.NewChatModel(ctx, &arkmodel.ChatModelConfig{
			BaseURL:   cfg.BaseURL,
			Region:    cfg.Region,
			APIKey:    cfg.APIKey,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Model:     upstream,
		})
	}), nil
}

// NewWithFactory creates an Adapter over any chat model factory.
func NewWithFactory(f Factory) *Adapter {
	return &Adapter{factory: f, models: make(map[string]model.BaseChatModel)}
}

func (a *Adapter) chatModel(ctx context.Context, upstream string) (model.BaseChatModel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if m, ok := a.models[upstream]; ok {
		return m, nil
	}

	m, err := a.factory(ctx, upstream)
	if err != nil {
		return nil, err
	}
	a.models[upstream] = m

	return m, nil
}

// Send generates a reply. Tool declarations are not forwarded; the catalog
// marks Ark models as tool-less.
func (a *Adapter) Send(ctx context.Context, req modeladapter.Request) (modeladapter.Response, error) {
	cm, err := a.chatModel(ctx, req.Model)
	if err != nil {
		return modeladapter.Response{}, fmt.Errorf("ark: %w", &modeladapter.ProviderError{Provider: provider, Message: "create chat model", Err: err})
	}

	msg, err := cm.Generate(ctx, buildMessages(req), options(req.Params)...)
	if err != nil {
		return modeladapter.Response{}, fmt.Errorf("ark: %w", &modeladapter.ProviderError{Provider: provider, Message: "generate", Err: err})
	}

	return parseMessage(msg), nil
}

func options(p modeladapter.Params) []model.Option {
	var opts []model.Option
	if p.Temperature != nil {
		opts = append(opts, model.WithTemperature(float32(*p.Temperature)))
	}
	if p.TopP != nil {
		opts = append(opts, model.WithTopP(float32(*p.TopP)))
	}
	if p.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*p.MaxTokens))
	}
	return opts
}

func buildMessages(r modeladapter.Request) []*schema.Message {
	var out []*schema.Message
	if r.System != "" {
		out = append(out, schema.SystemMessage(r.System))
	}

	for _, m := range r.Messages {
		if msg := toSchema(m); msg != nil {
			out = append(out, msg)
		}
	}

	return out
}

func toSchema(m message.Message) *schema.Message {
	switch m.Role {
	case role.System:
		return nil
	case role.Tool:
		// Without tool declarations the model only sees results as text.
		var b strings.Builder
		for _, tr := range m.ToolResults() {
			fmt.Fprintf(&b, "%s: %s\n", tr.Name, tr.Content)
		}
		if b.Len() == 0 {
			return nil
		}
		return schema.UserMessage(strings.TrimSpace(b.String()))
	case role.Assistant:
		text := m.TextContent()
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return schema.AssistantMessage(text, nil)
	default:
		text := m.TextContent()
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return schema.UserMessage(text)
	}
}

func parseMessage(msg *schema.Message) modeladapter.Response {
	var out modeladapter.Response
	if msg == nil {
		return out
	}

	out.Text = strings.TrimSpace(msg.Content)

	for _, tc := range msg.ToolCalls {
		args := tc.Function.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, content.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	if meta := msg.ResponseMeta; meta != nil && meta.Usage != nil {
		out.Usage = usage.TokenCount{
			InputTokens:  meta.Usage.PromptTokens,
			OutputTokens: meta.Usage.CompletionTokens,
		}
	}

	return out
}
