package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/turn"
)

// Session is one interactive conversation bound to a chat id. Once a turn
// has picked a model the session sticks to it, so later turns share its
// history. Only one Send call may be active at a time.
type Session struct {
	id     string
	engine *Engine

	mu     sync.Mutex
	model  string
	mode   turn.Mode
	active bool
}

// newSession creates a session with the given chat id and model.
func newSession(id, model string, e *Engine) *Session {
	return &Session{id: id, model: model, engine: e}
}

// ID returns the chat id.
func (s *Session) ID() string { return s.id }

// Model returns the model the session is bound to, if any.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.model
}

// SetMode sets the mode sent with the next turns. The zero Mode lets
// history decide.
func (s *Session) SetMode(m turn.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = m
}

// Send runs a text turn.
func (s *Session) Send(ctx context.Context, text string) (turn.Result, error) {
	return s.SendParts(ctx, text)
}

// SendParts runs a turn with attachments. Only one Send may be active per
// session.
func (s *Session) SendParts(ctx context.Context, text string, attachments ...content.Part) (turn.Result, error) {
	model, mode, err := s.acquire()
	if err != nil {
		return turn.Result{}, err
	}
	defer s.release()

	res, err := s.engine.ProcessTurn(ctx, turn.Request{
		ChatID:      s.id,
		Input:       text,
		Attachments: attachments,
		Model:       model,
		Mode:        mode,
	})
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	if s.model == "" && res.Model.ID != "" {
		s.model = res.Model.ID
	}
	s.mu.Unlock()

	return res, nil
}

// History returns the session's stored messages. It is empty until a model
// has been chosen.
func (s *Session) History(ctx context.Context) ([]message.Message, error) {
	model := s.Model()
	if model == "" {
		return nil, nil
	}

	return s.engine.History(ctx, "", model, s.id)
}

func (s *Session) acquire() (string, turn.Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return "", "", fmt.Errorf("engine: session %s: another Send is already active", s.id)
	}
	s.active = true
	return s.model, s.mode, nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
}
