// Package message defines the Message type exchanged and persisted during a turn.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/google/uuid"
)

// Message is one conversational unit. It is a value type that copies cheaply;
// Parts is shared between copies and must be treated as immutable once the
// message has been appended to a store.
type Message struct {
	ID        string
	Role      role.Role
	Parts     []content.Part
	Citations []string
	Mode      string
	LogID     string
	Model     string
	CreatedAt time.Time
}

// New creates a message with a fresh id and the given role and parts.
func New(r role.Role, parts ...content.Part) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      r,
		Parts:     parts,
		CreatedAt: time.Now().UTC(),
	}
}

// NewText creates a message with a single Text content part.
func NewText(r role.Role, text string) Message {
	return New(r, content.Text{Text: text})
}

// TextContent concatenates the text of all Text parts in the message.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// ToolCalls returns all ToolCall parts in the message.
func (m Message) ToolCalls() []content.ToolCall {
	var calls []content.ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(content.ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ToolResults returns all ToolResult parts in the message.
func (m Message) ToolResults() []content.ToolResult {
	var results []content.ToolResult
	for _, p := range m.Parts {
		if tr, ok := p.(content.ToolResult); ok {
			results = append(results, tr)
		}
	}
	return results
}

// IsEmpty reports whether the message carries nothing a model could read.
func (m Message) IsEmpty() bool {
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok && strings.TrimSpace(t.Text) == "" {
			continue
		}
		return false
	}
	return true
}

// ErrToolCallRole is returned by Validate when a non-assistant message carries tool calls.
var ErrToolCallRole = errors.New("message: tool calls require the assistant role")

// Validate checks the invariants that hold for a single message.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("message: invalid role %q", m.Role)
	}
	if len(m.ToolCalls()) > 0 && m.Role != role.Assistant {
		return ErrToolCallRole
	}
	if m.Role == role.Tool && len(m.ToolResults()) == 0 {
		return errors.New("message: tool message without a tool result")
	}
	return nil
}

// --- JSON encoding ---

type record struct {
	ID        string       `json:"id"`
	Role      role.Role    `json:"role"`
	Content   string       `json:"content"`
	Parts     []partRecord `json:"parts,omitempty"`
	Citations []string     `json:"citations,omitempty"`
	Mode      string       `json:"mode,omitempty"`
	LogID     string       `json:"logId,omitempty"`
	Model     string       `json:"model,omitempty"`
	CreatedAt time.Time    `json:"timestamp"`
}

type partRecord struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	URL        string          `json:"url,omitempty"`
	Data       []byte          `json:"data,omitempty"`
	MediaType  string          `json:"media_type,omitempty"`
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Arguments  string          `json:"arguments,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Status     content.Status  `json:"status,omitempty"`
	Content    string          `json:"content,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// MarshalJSON encodes the message with its parts tagged by kind. The
// flattened text is duplicated under "content" for clients that only render text.
func (m Message) MarshalJSON() ([]byte, error) {
	rec := record{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.TextContent(),
		Citations: m.Citations,
		Mode:      m.Mode,
		LogID:     m.LogID,
		Model:     m.Model,
		CreatedAt: m.CreatedAt,
	}

	for _, p := range m.Parts {
		pr, err := encodePart(p)
		if err != nil {
			return nil, err
		}
		rec.Parts = append(rec.Parts, pr)
	}

	return json.Marshal(rec)
}

// UnmarshalJSON decodes a message written by MarshalJSON. A record without
// parts but with "content" decodes to a single Text part.
func (m *Message) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	*m = Message{
		ID:        rec.ID,
		Role:      rec.Role,
		Citations: rec.Citations,
		Mode:      rec.Mode,
		LogID:     rec.LogID,
		Model:     rec.Model,
		CreatedAt: rec.CreatedAt,
	}

	if len(rec.Parts) == 0 && rec.Content != "" {
		m.Parts = []content.Part{content.Text{Text: rec.Content}}
		return nil
	}

	for _, pr := range rec.Parts {
		p, err := decodePart(pr)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, p)
	}

	return nil
}

func encodePart(p content.Part) (partRecord, error) {
	switch v := p.(type) {
	case content.Text:
		return partRecord{Type: v.PartKind(), Text: v.Text}, nil
	case content.Image:
		return partRecord{Type: v.PartKind(), URL: v.URL, Data: v.Data, MediaType: v.MediaType}, nil
	case content.Audio:
		return partRecord{Type: v.PartKind(), URL: v.URL, Data: v.Data, MediaType: v.MediaType}, nil
	case content.ToolCall:
		return partRecord{Type: v.PartKind(), ID: v.ID, Name: v.Name, Arguments: v.Arguments}, nil
	case content.ToolResult:
		return partRecord{
			Type:       v.PartKind(),
			ToolCallID: v.ToolCallID,
			Name:       v.Name,
			Status:     v.Status,
			Content:    v.Content,
			Result:     v.Data,
		}, nil
	default:
		return partRecord{}, fmt.Errorf("message: cannot encode part kind %q", p.PartKind())
	}
}

func decodePart(pr partRecord) (content.Part, error) {
	switch pr.Type {
	case "text":
		return content.Text{Text: pr.Text}, nil
	case "image":
		return content.Image{URL: pr.URL, Data: pr.Data, MediaType: pr.MediaType}, nil
	case "audio":
		return content.Audio{URL: pr.URL, Data: pr.Data, MediaType: pr.MediaType}, nil
	case "tool_call":
		return content.ToolCall{ID: pr.ID, Name: pr.Name, Arguments: pr.Arguments}, nil
	case "tool_result":
		return content.ToolResult{
			ToolCallID: pr.ToolCallID,
			Name:       pr.Name,
			Status:     pr.Status,
			Content:    pr.Content,
			Data:       pr.Result,
		}, nil
	default:
		return nil, fmt.Errorf("message: unknown part type %q", pr.Type)
	}
}
