package server

import (
	"fmt"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/tools/toolbox"
	"github.com/germanamz/assistant/pkg/turn"
)

// TurnRequest is the wire form of a turn, shared by POST /chat and /ws.
type TurnRequest struct {
	ChatID      string              `json:"chatId"`
	Input       string              `json:"input"`
	Model       string              `json:"model,omitempty"`
	Budget      string              `json:"budget,omitempty"`
	Mode        string              `json:"mode,omitempty"`
	Role        string              `json:"role,omitempty"`
	Platform    string              `json:"platform,omitempty"`
	Params      modeladapter.Params `json:"params"`
	UseRAG      bool                `json:"useRag,omitempty"`
	DryRun      bool                `json:"dryRun,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
	User        *toolbox.User       `json:"user,omitempty"`
}

// Attachment is an image or audio input. Data is base64 in JSON.
type Attachment struct {
	Type      string `json:"type"` // "image" or "audio".
	URL       string `json:"url,omitempty"`
	Data      []byte `json:"data,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// TurnResponse is the wire form of a turn outcome. Error is set instead of
// the other fields when the turn failed.
type TurnResponse struct {
	ChatID    string               `json:"chatId"`
	Model     string               `json:"model,omitempty"`
	Mode      string               `json:"mode,omitempty"`
	Messages  []message.Message    `json:"messages,omitempty"`
	Violation *guardrails.Result   `json:"violation,omitempty"`
	Direction guardrails.Direction `json:"direction,omitempty"`
	Warning   string               `json:"warning,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func (p TurnRequest) toTurn() (turn.Request, error) {
	req := turn.Request{
		ChatID:   p.ChatID,
		Input:    p.Input,
		Model:    p.Model,
		Platform: p.Platform,
		Params:   p.Params,
		UseRAG:   p.UseRAG,
		DryRun:   p.DryRun,
		User:     p.User,
	}

	if p.Budget != "" {
		tier, err := models.ParseTier(p.Budget)
		if err != nil {
			return turn.Request{}, err
		}
		req.Budget = &tier
	}

	if p.Mode != "" {
		mode, err := turn.ParseMode(p.Mode)
		if err != nil {
			return turn.Request{}, err
		}
		req.Mode = mode
	}

	if p.Role != "" {
		r, err := role.Parse(p.Role)
		if err != nil {
			return turn.Request{}, err
		}
		req.Role = r
	}

	for i, a := range p.Attachments {
		if a.URL == "" && len(a.Data) == 0 {
			return turn.Request{}, fmt.Errorf("attachments[%d]: url or data is required", i)
		}
		switch a.Type {
		case "image":
			req.Attachments = append(req.Attachments, content.Image{URL: a.URL, Data: a.Data, MediaType: a.MediaType})
		case "audio":
			req.Attachments = append(req.Attachments, content.Audio{URL: a.URL, Data: a.Data, MediaType: a.MediaType})
		default:
			return turn.Request{}, fmt.Errorf("attachments[%d]: unknown type %q", i, a.Type)
		}
	}

	return req, nil
}

func newTurnResponse(chatID string, res turn.Result) TurnResponse {
	resp := TurnResponse{
		ChatID:    chatID,
		Model:     res.Model.ID,
		Mode:      string(res.Mode),
		Messages:  res.Messages,
		Violation: res.Violation,
	}
	if res.Violation != nil {
		resp.Direction = res.Direction
	}
	if res.PersistErr != nil {
		resp.Warning = "history not fully saved: " + res.PersistErr.Error()
	}
	return resp
}
