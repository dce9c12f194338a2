// Package gemini provides a Sender for Google Gemini models over the
// generative-ai-go SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
)

const provider = "google"

var _ modeladapter.Sender = (*Adapter)(nil)

// Call is one generation: the model settings plus the full conversation,
// whose last entry is the turn being sent.
type Call struct {
	Model    string
	Config   genai.GenerationConfig
	System   *genai.Content
	Tools    []*genai.Tool
	Contents []*genai.Content
}

// Generator runs a Call.
type Generator interface {
	Generate(ctx context.Context, call Call) (*genai.GenerateContentResponse, error)
}

// Adapter implements modeladapter.Sender for Gemini.
type Adapter struct {
	gen Generator
}

// New creates an Adapter backed by an API-key client.
func New(ctx context.Context, apiKey string) (*Adapter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return NewWithGenerator(&ClientGenerator{Client: client}), nil
}

// NewWithGenerator creates an Adapter over any Generator.
func NewWithGenerator(gen Generator) *Adapter {
	return &Adapter{gen: gen}
}

// Close releases the underlying client when the generator holds one.
func (a *Adapter) Close() error {
	if c, ok := a.gen.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Send converts the conversation, runs it and normalizes the reply.
func (a *Adapter) Send(ctx context.Context, req modeladapter.Request) (modeladapter.Response, error) {
	call := buildCall(req)
	if len(call.Contents) == 0 {
		return modeladapter.Response{}, fmt.Errorf("gemini: %w",
			&modeladapter.ProviderError{Provider: provider, Message: "no content to send"})
	}

	resp, err := a.gen.Generate(ctx, call)
	if err != nil {
		return modeladapter.Response{}, fmt.Errorf("gemini: %w", providerError(err))
	}

	return parseResponse(resp), nil
}

// ClientGenerator runs calls through a genai chat session.
type ClientGenerator struct {
	Client *genai.Client
}

// Generate implements Generator.
func (g *ClientGenerator) Generate(ctx context.Context, call Call) (*genai.GenerateContentResponse, error) {
	gm := g.Client.GenerativeModel(call.Model)
	gm.GenerationConfig = call.Config
	gm.SystemInstruction = call.System
	gm.Tools = call.Tools

	n := len(call.Contents)
	cs := gm.StartChat()
	cs.History = call.Contents[:n-1]

	return cs.SendMessage(ctx, call.Contents[n-1].Parts...)
}

// Close releases the underlying client.
func (g *ClientGenerator) Close() error {
	return g.Client.Close()
}

func providerError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &modeladapter.ProviderError{Provider: provider, StatusCode: gerr.Code, Message: gerr.Message, Err: err}
	}
	return &modeladapter.ProviderError{Provider: provider, Message: "request failed", Err: err}
}

// --- conversion helpers ---

func buildCall(r modeladapter.Request) Call {
	call := Call{Model: r.Model}

	if p := r.Params; p.Temperature != nil {
		call.Config.SetTemperature(float32(*p.Temperature))
	}
	if p := r.Params; p.TopP != nil {
		call.Config.SetTopP(float32(*p.TopP))
	}
	if p := r.Params; p.TopK != nil {
		call.Config.SetTopK(int32(*p.TopK))
	}
	if p := r.Params; p.MaxTokens != nil {
		call.Config.SetMaxOutputTokens(int32(*p.MaxTokens))
	}

	if r.System != "" {
		call.System = &genai.Content{Parts: []genai.Part{genai.Text(r.System)}}
	}

	if len(r.Tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range r.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toSchema(t.InputSchema),
			})
		}
		call.Tools = []*genai.Tool{tool}
	}

	for _, m := range r.Messages {
		c := toContent(m)
		if c == nil {
			continue
		}
		// Consecutive entries of one role are merged.
		if n := len(call.Contents); n > 0 && call.Contents[n-1].Role == c.Role {
			call.Contents[n-1].Parts = append(call.Contents[n-1].Parts, c.Parts...)
			continue
		}
		call.Contents = append(call.Contents, c)
	}

	return call
}

func toContent(m message.Message) *genai.Content {
	if m.Role == role.System {
		return nil
	}

	c := &genai.Content{Role: "user"}
	if m.Role == role.Assistant {
		c.Role = "model"
	}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case content.Text:
			if strings.TrimSpace(v.Text) != "" {
				c.Parts = append(c.Parts, genai.Text(v.Text))
			}
		case content.Image:
			if len(v.Data) > 0 {
				c.Parts = append(c.Parts, genai.Blob{MIMEType: v.MediaType, Data: v.Data})
			}
		case content.Audio:
			if len(v.Data) > 0 {
				c.Parts = append(c.Parts, genai.Blob{MIMEType: v.MediaType, Data: v.Data})
			}
		case content.ToolCall:
			args := map[string]any{}
			_ = json.Unmarshal([]byte(v.Arguments), &args)
			c.Parts = append(c.Parts, genai.FunctionCall{Name: v.Name, Args: args})
		case content.ToolResult:
			resp := map[string]any{"status": string(v.Status), "content": v.Content}
			if len(v.Data) > 0 {
				var data any
				if json.Unmarshal(v.Data, &data) == nil {
					resp["data"] = data
				}
			}
			c.Parts = append(c.Parts, genai.FunctionResponse{Name: v.Name, Response: resp})
		}
	}

	if len(c.Parts) == 0 {
		return nil
	}
	return c
}

func parseResponse(resp *genai.GenerateContentResponse) modeladapter.Response {
	var out modeladapter.Response
	if resp == nil {
		return out
	}

	if u := resp.UsageMetadata; u != nil {
		out.Usage = usage.TokenCount{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			texts = append(texts, string(p))
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil || p.Args == nil {
				args = []byte("{}")
			}
			// Gemini does not number its calls.
			out.ToolCalls = append(out.ToolCalls, content.ToolCall{
				ID:        "call_" + uuid.NewString(),
				Name:      p.Name,
				Arguments: string(args),
			})
		}
	}
	out.Text = strings.TrimSpace(strings.Join(texts, ""))

	return out
}
