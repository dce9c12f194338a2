package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/providers/gemini"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
)

type fakeGenerator struct {
	call gemini.Call
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, call gemini.Call) (*genai.GenerateContentResponse, error) {
	f.call = call
	return f.resp, f.err
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 7, CandidatesTokenCount: 3, TotalTokenCount: 10},
	}
}

func TestSend_SimpleText(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(genai.Text("Hello "), genai.Text("there"))}
	adapter := gemini.NewWithGenerator(gen)

	temp, topK, maxTokens := 0.2, 20, 100
	resp, err := adapter.Send(context.Background(), modeladapter.Request{
		Model:  "gemini-1.5-flash",
		System: "Be brief.",
		Messages: []message.Message{
			message.NewText(role.User, "Hi"),
			message.NewText(role.Assistant, "Hey"),
			message.NewText(role.User, "How are you?"),
		},
		Params: modeladapter.Params{Temperature: &temp, TopK: &topK, MaxTokens: &maxTokens},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", resp.Text)
	assert.Equal(t, 7, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)

	call := gen.call
	assert.Equal(t, "gemini-1.5-flash", call.Model)
	require.NotNil(t, call.System)
	assert.Equal(t, []genai.Part{genai.Text("Be brief.")}, call.System.Parts)
	require.NotNil(t, call.Config.Temperature)
	assert.InDelta(t, 0.2, *call.Config.Temperature, 1e-6)
	assert.Equal(t, int32(20), *call.Config.TopK)
	assert.Equal(t, int32(100), *call.Config.MaxOutputTokens)
	assert.Nil(t, call.Config.TopP)

	require.Len(t, call.Contents, 3)
	assert.Equal(t, "user", call.Contents[0].Role)
	assert.Equal(t, "model", call.Contents[1].Role)
	assert.Equal(t, "user", call.Contents[2].Role)
}

func TestSend_FunctionCalls(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(
		genai.FunctionCall{Name: "get_weather", Args: map[string]any{"latitude": 1.5}},
		genai.FunctionCall{Name: "create_image"},
	)}
	adapter := gemini.NewWithGenerator(gen)

	schema := json.RawMessage(`{"type":"object","properties":{"latitude":{"type":"number"},"units":{"type":["string","null"],"enum":["metric"]}},"required":["latitude"]}`)
	resp, err := adapter.Send(context.Background(), modeladapter.Request{
		Model:    "gemini-1.5-pro",
		Messages: []message.Message{message.NewText(role.User, "Weather?")},
		Tools:    []toolbox.Tool{{Name: "get_weather", Description: "Weather", InputSchema: schema}},
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"latitude":1.5}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, "{}", resp.ToolCalls[1].Arguments)
	assert.NotEqual(t, resp.ToolCalls[0].ID, resp.ToolCalls[1].ID)

	require.Len(t, gen.call.Tools, 1)
	decl := gen.call.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, "get_weather", decl.Name)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"latitude"}, decl.Parameters.Required)
	assert.Equal(t, genai.TypeNumber, decl.Parameters.Properties["latitude"].Type)
	units := decl.Parameters.Properties["units"]
	assert.Equal(t, genai.TypeString, units.Type)
	assert.True(t, units.Nullable)
	assert.Equal(t, []string{"metric"}, units.Enum)
}

func TestSend_ToolRoundTripContents(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(genai.Text("Sunny."))}
	adapter := gemini.NewWithGenerator(gen)

	_, err := adapter.Send(context.Background(), modeladapter.Request{
		Model: "gemini-1.5-pro",
		Messages: []message.Message{
			message.NewText(role.User, "Weather?"),
			message.New(role.Assistant, content.ToolCall{ID: "1", Name: "get_weather", Arguments: `{"latitude":1}`}),
			message.New(role.Tool, content.ToolResult{
				ToolCallID: "1", Name: "get_weather", Status: content.StatusSuccess,
				Content: "Sunny", Data: json.RawMessage(`{"temp":20}`),
			}),
		},
	})
	require.NoError(t, err)

	contents := gen.call.Contents
	require.Len(t, contents, 3)
	assert.Equal(t, genai.FunctionCall{Name: "get_weather", Args: map[string]any{"latitude": float64(1)}}, contents[1].Parts[0])

	fr, ok := contents[2].Parts[0].(genai.FunctionResponse)
	require.True(t, ok)
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, "Sunny", fr.Response["content"])
	assert.Equal(t, map[string]any{"temp": float64(20)}, fr.Response["data"])
}

func TestSend_InlineImage(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(genai.Text("A dot."))}
	adapter := gemini.NewWithGenerator(gen)

	_, err := adapter.Send(context.Background(), modeladapter.Request{
		Model: "gemini-1.5-flash",
		Messages: []message.Message{message.New(role.User,
			content.Text{Text: "What is this?"},
			content.Image{Data: []byte{1}, MediaType: "image/png"},
		)},
	})
	require.NoError(t, err)

	parts := gen.call.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, genai.Blob{MIMEType: "image/png", Data: []byte{1}}, parts[1])
}

func TestSend_NoContent(t *testing.T) {
	adapter := gemini.NewWithGenerator(&fakeGenerator{})

	_, err := adapter.Send(context.Background(), modeladapter.Request{
		Model:    "gemini-1.5-flash",
		Messages: []message.Message{message.NewText(role.User, "  ")},
	})

	var perr *modeladapter.ProviderError
	require.True(t, errors.As(err, &perr))
}

func TestSend_APIError(t *testing.T) {
	adapter := gemini.NewWithGenerator(&fakeGenerator{err: &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"}})

	_, err := adapter.Send(context.Background(), modeladapter.Request{
		Model:    "gemini-1.5-flash",
		Messages: []message.Message{message.NewText(role.User, "Hi")},
	})

	var perr *modeladapter.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "google", perr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, "quota", perr.Message)
}
