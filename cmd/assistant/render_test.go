package main

import (
	"errors"
	"testing"

	"github.com/germanamz/assistant/pkg/chats/content"
	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/modeladapter/usage"
	"github.com/germanamz/assistant/pkg/turn"
	"github.com/stretchr/testify/assert"
)

func TestRenderResult_Violation(t *testing.T) {
	out := renderResult(turn.Result{
		Violation: &guardrails.Result{Violations: []string{"Violence and Hate"}},
		Direction: guardrails.Output,
	})

	assert.Contains(t, out, "the reply")
	assert.Contains(t, out, "Violence and Hate")
}

func TestRenderResult_ToolRound(t *testing.T) {
	call := message.New(role.Assistant, content.ToolCall{ID: "c1", Name: "get_weather", Arguments: `{"lat":1}`})
	result := message.New(role.Tool, content.ToolResult{ToolCallID: "c1", Content: "sunny", Status: content.StatusSuccess})
	final := message.NewText(role.Assistant, "It is sunny.")
	final.Citations = []string{"https://weather.example"}

	out := renderResult(turn.Result{
		Messages:   []message.Message{call, result, final},
		PersistErr: errors.New("disk full"),
	})

	assert.Contains(t, out, "get_weather")
	assert.Contains(t, out, "sunny")
	assert.Contains(t, out, "It is sunny.")
	assert.Contains(t, out, "[1] https://weather.example")
	assert.Contains(t, out, "disk full")
}

func TestRenderUserMessage_Multiline(t *testing.T) {
	out := renderUserMessage("first\nsecond")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}

func TestStateLabel(t *testing.T) {
	assert.Equal(t, "Running tools...", stateLabel(turn.Transition{State: turn.StateToolExec}))
	assert.Equal(t, "Thinking (round 2)...", stateLabel(turn.Transition{State: turn.StateDispatch, Round: 1}))
	assert.Empty(t, stateLabel(turn.Transition{State: turn.StateDone}))
}

func TestStatusBar(t *testing.T) {
	tr := &usage.Tracker{}
	sb := statusBarModel{usage: tr}
	assert.Contains(t, sb.View(), "model: auto")

	tr.Add("claude-3.5-haiku", usage.TokenCount{InputTokens: 1200, OutputTokens: 30})
	sb.model = "claude-3.5-haiku"
	sb.mode = turn.PromptCoach

	out := sb.View()
	assert.Contains(t, out, "model: claude-3.5-haiku")
	assert.Contains(t, out, "mode: prompt_coach")
	assert.Contains(t, out, "1.2k")
}
