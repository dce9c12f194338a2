// Package bedrock provides a Sender for AWS Bedrock foundation models over
// the Converse API.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
)

const provider = "bedrock"

// DefaultRegion is used when the config names none.
const DefaultRegion = "us-east-1"

var _ modeladapter.Sender = (*Adapter)(nil)

// ConverseAPI is the part of the Bedrock runtime client the adapter uses.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Config holds static credentials for the Bedrock runtime.
type Config struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// Adapter implements modeladapter.Sender for Bedrock Converse.
type Adapter struct {
	api ConverseAPI
}

// New creates an Adapter with a static-credential runtime client.
func New(cfg Config) (*Adapter, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("bedrock: access_key and secret_key are required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	client := bedrockruntime.New(bedrockruntime.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})

	return NewWithAPI(client), nil
}

// NewWithAPI creates an Adapter over an existing client.
func NewWithAPI(api ConverseAPI) *Adapter {
	return &Adapter{api: api}
}

// Send runs one Converse call and normalizes the reply.
func (a *Adapter) Send(ctx context.Context, req modeladapter.Request) (modeladapter.Response, error) {
	in, err := buildInput(req)
	if err != nil {
		return modeladapter.Response{}, fmt.Errorf("bedrock: %w", err)
	}

	out, err := a.api.Converse(ctx, in)
	if err != nil {
		return modeladapter.Response{}, fmt.Errorf("bedrock: %w", providerError(err))
	}

	return parseOutput(out)
}

func providerError(err error) error {
	perr := &modeladapter.ProviderError{Provider: provider, Err: err}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		perr.StatusCode = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		perr.Message = apiErr.ErrorMessage()
	}

	return perr
}

// --- conversion helpers ---

func buildInput(r modeladapter.Request) (*bedrockruntime.ConverseInput, error) {
	in := &bedrockruntime.ConverseInput{ModelId: aws.String(r.Model)}

	if r.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: r.System}}
	}

	cfg := &types.InferenceConfiguration{}
	set := false
	if r.Params.Temperature != nil {
		cfg.Temperature = aws.Float32(float32(*r.Params.Temperature))
		set = true
	}
	if r.Params.TopP != nil {
		cfg.TopP = aws.Float32(float32(*r.Params.TopP))
		set = true
	}
	if r.Params.MaxTokens != nil {
		cfg.MaxTokens = aws.Int32(int32(*r.Params.MaxTokens))
		set = true
	}
	if set {
		in.InferenceConfig = cfg
	}

	if len(r.Tools) > 0 {
		tc := &types.ToolConfiguration{}
		for _, t := range r.Tools {
			schema := map[string]any{"type": "object"}
			if len(t.InputSchema) > 0 {
				if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
					return nil, fmt.Errorf("tool %s schema: %w", t.Name, err)
				}
			}
			spec := types.ToolSpecification{
				Name:        aws.String(t.Name),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			}
			if t.Description != "" {
				spec.Description = aws.String(t.Description)
			}
			tc.Tools = append(tc.Tools, &types.ToolMemberToolSpec{Value: spec})
		}
		in.ToolConfig = tc
	}

	for _, m := range r.Messages {
		msg, ok := toMessage(m)
		if !ok {
			continue
		}
		// Converse requires alternating roles.
		if n := len(in.Messages); n > 0 && in.Messages[n-1].Role == msg.Role {
			in.Messages[n-1].Content = append(in.Messages[n-1].Content, msg.Content...)
			continue
		}
		in.Messages = append(in.Messages, msg)
	}

	return in, nil
}

func toMessage(m message.Message) (types.Message, bool) {
	out := types.Message{Role: types.ConversationRoleUser}
	switch m.Role {
	case role.System:
		return out, false
	case role.Assistant:
		out.Role = types.ConversationRoleAssistant
	}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case content.Text:
			if strings.TrimSpace(v.Text) != "" {
				out.Content = append(out.Content, &types.ContentBlockMemberText{Value: v.Text})
			}
		case content.Image:
			if format, ok := imageFormat(v.MediaType); ok && len(v.Data) > 0 {
				out.Content = append(out.Content, &types.ContentBlockMemberImage{Value: types.ImageBlock{
					Format: format,
					Source: &types.ImageSourceMemberBytes{Value: v.Data},
				}})
			}
		case content.ToolCall:
			input := map[string]any{}
			_ = json.Unmarshal([]byte(v.Arguments), &input)
			out.Content = append(out.Content, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
				ToolUseId: aws.String(v.ID),
				Name:      aws.String(v.Name),
				Input:     document.NewLazyDocument(input),
			}})
		case content.ToolResult:
			text := v.Content
			if len(v.Data) > 0 {
				text += "\n" + string(v.Data)
			}
			block := types.ToolResultBlock{
				ToolUseId: aws.String(v.ToolCallID),
				Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: text}},
				Status:    types.ToolResultStatusSuccess,
			}
			if v.IsError() {
				block.Status = types.ToolResultStatusError
			}
			out.Content = append(out.Content, &types.ContentBlockMemberToolResult{Value: block})
		}
	}

	return out, len(out.Content) > 0
}

func imageFormat(mediaType string) (types.ImageFormat, bool) {
	switch mediaType {
	case "image/png":
		return types.ImageFormatPng, true
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, true
	case "image/gif":
		return types.ImageFormatGif, true
	case "image/webp":
		return types.ImageFormatWebp, true
	}
	return "", false
}

func parseOutput(out *bedrockruntime.ConverseOutput) (modeladapter.Response, error) {
	var resp modeladapter.Response
	if out == nil {
		return resp, nil
	}

	if u := out.Usage; u != nil {
		resp.Usage = usage.TokenCount{
			InputTokens:  int(aws.ToInt32(u.InputTokens)),
			OutputTokens: int(aws.ToInt32(u.OutputTokens)),
		}
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}

	var texts []string
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			texts = append(texts, b.Value)
		case *types.ContentBlockMemberToolUse:
			args := "{}"
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return modeladapter.Response{}, fmt.Errorf("bedrock: decode tool input: %w", err)
				}
				if s := strings.TrimSpace(string(raw)); s != "" && s != "null" {
					args = s
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, content.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	resp.Text = strings.TrimSpace(strings.Join(texts, "\n"))

	return resp, nil
}
