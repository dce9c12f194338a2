package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/providers/replicate"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
)

// Replicate model versions used by the media tools.
const (
	ImageModelVersion = "5599ed30703defd1d160a25a63321b4dec97101d98b4674bcc56e41f62f35637"
	VideoModelVersion = "847dfa8b01e739637fc76f480ede0c1d76408e1d694b830b5dfb8e547bf98405"
	MusicModelVersion = "671ac645ce5e552cc63a54a2bbff63fcf798043055d2dac5fc9e36a837eedcfb"
)

// WebhookPath is appended to the app URL to receive prediction updates.
const WebhookPath = "/webhooks/replicate"

type mediaTool struct {
	name        string
	noun        string
	description string
	version     string
	schema      string
}

var mediaTools = []mediaTool{
	{
		name:        "create_image",
		noun:        "Image",
		description: "Generate an image from a text prompt.",
		version:     ImageModelVersion,
		schema:      `{"type":"object","properties":{"prompt":{"type":"string","description":"What the image should show"},"negative_prompt":{"type":"string","description":"What the image should not show"},"width":{"type":"integer"},"height":{"type":"integer"},"num_outputs":{"type":"integer"},"guidance_scale":{"type":"number"}},"required":["prompt"]}`,
	},
	{
		name:        "create_video",
		noun:        "Video",
		description: "Generate a short video from a text prompt.",
		version:     VideoModelVersion,
		schema:      `{"type":"object","properties":{"prompt":{"type":"string","description":"What the video should show"},"negative_prompt":{"type":"string"},"guidance_scale":{"type":"number"},"video_length":{"type":"integer"},"width":{"type":"integer"},"height":{"type":"integer"}},"required":["prompt"]}`,
	},
	{
		name:        "create_music",
		noun:        "Music",
		description: "Generate a music clip from a text prompt.",
		version:     MusicModelVersion,
		schema:      `{"type":"object","properties":{"prompt":{"type":"string","description":"Style, instruments and mood of the music"},"duration":{"type":"integer","description":"Length in seconds"}},"required":["prompt"]}`,
	},
}

// MediaResult is the structured result of the media tools.
type MediaResult struct {
	PredictionID string          `json:"predictionId"`
	Status       string          `json:"status"`
	Output       json.RawMessage `json:"output,omitempty"`
}

func (m mediaTool) tool(p Predictor) toolbox.Tool {
	return toolbox.Tool{
		Name:        m.name,
		Description: m.description,
		InputSchema: json.RawMessage(m.schema),
		Handler: func(ctx context.Context, call toolbox.Call) (toolbox.Output, error) {
			return m.handle(ctx, p, call)
		},
	}
}

func (m mediaTool) handle(ctx context.Context, p Predictor, call toolbox.Call) (toolbox.Output, error) {
	var input map[string]any
	if err := json.Unmarshal(call.Args, &input); err != nil {
		return toolbox.Failed(m.name + ": invalid input"), nil
	}

	if prompt, _ := input["prompt"].(string); strings.TrimSpace(prompt) == "" {
		return toolbox.Failed("Missing prompt"), nil
	}

	pred, err := p.Predict(ctx, m.version, input, webhookURL(call.Request))
	if err != nil {
		return toolbox.Output{}, fmt.Errorf("%s: %w", m.name, err)
	}

	result := MediaResult{PredictionID: pred.ID, Status: pred.Status, Output: pred.Output}

	switch pred.Status {
	case replicate.StatusSucceeded:
		return toolbox.Output{Content: m.noun + " generated successfully", Data: result}, nil
	case replicate.StatusFailed, replicate.StatusCanceled:
		msg := fmt.Sprintf("%s generation %s", m.noun, pred.Status)
		if pred.Error != nil {
			msg = fmt.Sprintf("%s: %v", msg, pred.Error)
		}
		return toolbox.Output{Status: content.StatusError, Content: msg, Data: result}, nil
	default:
		return toolbox.Output{Content: m.noun + " generation started", Data: result}, nil
	}
}

func webhookURL(req toolbox.Request) string {
	if req.AppURL == "" {
		return ""
	}

	u := strings.TrimSuffix(req.AppURL, "/") + WebhookPath
	if req.ChatID != "" {
		u += "?chatId=" + url.QueryEscape(req.ChatID)
	}
	return u
}
