// Package replicate provides a Sender for language models hosted on
// Replicate and a predictions client for its media models.
package replicate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
)

// DefaultBaseURL is the Replicate API origin.
const DefaultBaseURL = "https://api.replicate.com"

// Prediction statuses.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

var _ modeladapter.Sender = (*Adapter)(nil)

// Prediction is a Replicate prediction as returned by the API.
type Prediction struct {
	ID      string            `json:"id"`
	Model   string            `json:"model,omitempty"`
	Version string            `json:"version,omitempty"`
	Status  string            `json:"status"`
	Output  json.RawMessage   `json:"output,omitempty"`
	Error   any               `json:"error,omitempty"`
	URLs    map[string]string `json:"urls,omitempty"`
	Metrics struct {
		InputTokenCount  int `json:"input_token_count"`
		OutputTokenCount int `json:"output_token_count"`
	} `json:"metrics"`
}

// Done reports whether the prediction reached a terminal status.
func (p Prediction) Done() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Text joins a streamed-token output into one string. Outputs that are not
// string arrays are returned as their raw JSON.
func (p Prediction) Text() string {
	var tokens []string
	if err := json.Unmarshal(p.Output, &tokens); err == nil {
		return strings.Join(tokens, "")
	}

	var s string
	if err := json.Unmarshal(p.Output, &s); err == nil {
		return s
	}

	return string(p.Output)
}

// Adapter talks to the Replicate predictions API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter. An empty baseURL uses DefaultBaseURL.
func New(baseURL, apiToken string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{}
	a.Provider = "replicate"
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{Key: apiToken}

	return a
}

type predictionRequest struct {
	Version string `json:"version,omitempty"`
	Input   any    `json:"input"`
	Webhook string `json:"webhook,omitempty"`
}

// Predict starts a prediction for a model version and waits for it as long
// as the API allows. Unfinished predictions are returned with their status
// so callers can hand the id to a webhook consumer.
func (a *Adapter) Predict(ctx context.Context, version string, input any, webhook string) (Prediction, error) {
	return a.post(ctx, "/v1/predictions", predictionRequest{Version: version, Input: input, Webhook: webhook})
}

// Send runs an official language model ("owner/name") with the conversation
// rendered into its prompt input.
func (a *Adapter) Send(ctx context.Context, req modeladapter.Request) (modeladapter.Response, error) {
	path := "/v1/models/" + escapeModel(req.Model) + "/predictions"

	pred, err := a.post(ctx, path, predictionRequest{Input: buildInput(req)})
	if err != nil {
		return modeladapter.Response{}, err
	}

	if pred.Status != StatusSucceeded {
		msg := fmt.Sprintf("prediction %s is %s", pred.ID, pred.Status)
		if pred.Error != nil {
			msg = fmt.Sprint(pred.Error)
		}
		return modeladapter.Response{}, fmt.Errorf("replicate: %w", &modeladapter.ProviderError{Provider: a.Provider, Message: msg})
	}

	return modeladapter.Response{
		Text:  strings.TrimSpace(pred.Text()),
		LogID: pred.ID,
		Usage: usage.TokenCount{
			InputTokens:  pred.Metrics.InputTokenCount,
			OutputTokens: pred.Metrics.OutputTokenCount,
		},
	}, nil
}

func (a *Adapter) post(ctx context.Context, path string, body predictionRequest) (Prediction, error) {
	extra := http.Header{}
	extra.Set("Prefer", "wait")

	var pred Prediction
	if _, err := a.PostJSONHeader(ctx, path, body, &pred, extra); err != nil {
		return Prediction{}, fmt.Errorf("replicate: %w", err)
	}

	return pred, nil
}

func escapeModel(model string) string {
	owner, name, ok := strings.Cut(model, "/")
	if !ok {
		return url.PathEscape(model)
	}
	return url.PathEscape(owner) + "/" + url.PathEscape(name)
}

type textInput struct {
	Prompt           string   `json:"prompt"`
	SystemPrompt     string   `json:"system_prompt,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

func buildInput(r modeladapter.Request) textInput {
	in := textInput{
		SystemPrompt:     r.System,
		MaxTokens:        r.Params.MaxTokens,
		Temperature:      r.Params.Temperature,
		TopP:             r.Params.TopP,
		TopK:             r.Params.TopK,
		Seed:             r.Params.Seed,
		FrequencyPenalty: r.Params.FrequencyPenalty,
		PresencePenalty:  r.Params.PresencePenalty,
	}

	var turns []string
	for _, m := range r.Messages {
		text := strings.TrimSpace(m.TextContent())
		if text == "" || m.Role == role.System || m.Role == role.Tool {
			continue
		}

		speaker := "User"
		if m.Role == role.Assistant {
			speaker = "Assistant"
		}
		turns = append(turns, speaker+": "+text)
	}

	// A single user message goes through unlabelled.
	if len(turns) == 1 && strings.HasPrefix(turns[0], "User: ") {
		in.Prompt = strings.TrimPrefix(turns[0], "User: ")
		return in
	}

	in.Prompt = strings.Join(append(turns, "Assistant:"), "\n\n")
	return in
}
