// Package history is the append-only conversation store. Every Store is bound
// to a (platform, model) namespace, so the same chat id under another
// platform or model addresses a disjoint history.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/google/uuid"
)

// DefaultPlatform is used when a caller names none.
const DefaultPlatform = "api"

// ErrNoChatID is returned for an empty chat id.
var ErrNoChatID = errors.New("history: chat id is required")

// Backend persists message logs under opaque keys. Implementations must be
// safe for concurrent use and return messages in append order.
type Backend interface {
	Append(ctx context.Context, key string, msg message.Message) error
	Read(ctx context.Context, key string) ([]message.Message, error)
}

// Store is a namespaced view over a Backend.
type Store struct {
	backend    Backend
	platform   string
	model      string
	shouldSave bool
}

// Option configures a Store.
type Option func(*Store)

// WithShouldSave controls whether Append writes to the backend. When false
// Append only returns the completed message.
func WithShouldSave(save bool) Option {
	return func(s *Store) { s.shouldSave = save }
}

// Open binds backend to the (platform, model) namespace.
func Open(backend Backend, platform, model string, opts ...Option) *Store {
	if platform == "" {
		platform = DefaultPlatform
	}

	s := &Store{backend: backend, platform: platform, model: model, shouldSave: true}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Platform returns the store's platform namespace.
func (s *Store) Platform() string { return s.platform }

// Model returns the store's model namespace.
func (s *Store) Model() string { return s.model }

// Append stores msg under chatID, filling in a missing id and timestamp, and
// returns the stored form.
func (s *Store) Append(ctx context.Context, chatID string, msg message.Message) (message.Message, error) {
	if chatID == "" {
		return message.Message{}, ErrNoChatID
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if !s.shouldSave {
		return msg, nil
	}

	if err := msg.Validate(); err != nil {
		return message.Message{}, fmt.Errorf("history: %w", err)
	}
	if err := s.backend.Append(ctx, s.key(chatID), msg); err != nil {
		return message.Message{}, fmt.Errorf("history: append: %w", err)
	}

	return msg, nil
}

// Read returns the chat's messages in append order. Unknown chats are empty.
func (s *Store) Read(ctx context.Context, chatID string) ([]message.Message, error) {
	if chatID == "" {
		return nil, ErrNoChatID
	}

	msgs, err := s.backend.Read(ctx, s.key(chatID))
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}
	return msgs, nil
}

func (s *Store) key(chatID string) string {
	return strings.Join([]string{s.platform, s.model, chatID}, ":")
}
