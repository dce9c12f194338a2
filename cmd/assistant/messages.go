package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/assistant/pkg/turn"
)

// inputSubmitMsg carries the text the user submitted from the input box.
type inputSubmitMsg struct {
	text string
}

// sendCompleteMsg is returned by the tea.Cmd that runs a turn.
type sendCompleteMsg struct {
	res      turn.Result
	err      error
	duration time.Duration
}

// transitionMsg reports pipeline progress of the running turn.
type transitionMsg struct {
	t turn.Transition
}

// programReadyMsg passes the *tea.Program to the model so it can start the
// event bridge.
type programReadyMsg struct {
	program *tea.Program
}

// initDrainMsg fires after a short delay so that stale terminal responses
// are discarded before focusing input.
type initDrainMsg struct{}
