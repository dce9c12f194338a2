package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/germanamz/assistant/pkg/modeladapter/usage"
	"github.com/germanamz/assistant/pkg/turn"
)

// statusBarModel shows the session model, mode, token usage and the last
// turn's duration.
type statusBarModel struct {
	usage    *usage.Tracker
	model    string
	mode     turn.Mode
	duration time.Duration
}

func (m statusBarModel) View() string {
	parts := make([]string, 0, 4)

	model := m.model
	if model == "" {
		model = "auto"
	}
	parts = append(parts, "model: "+model)

	if m.mode != "" {
		parts = append(parts, "mode: "+string(m.mode))
	}

	if m.usage != nil {
		total := m.usage.Total()
		if !total.IsZero() {
			parts = append(parts, fmt.Sprintf("tokens: ↑%s ↓%s", fmtTokens(total.InputTokens), fmtTokens(total.OutputTokens)))
		}
	}

	if m.duration > 0 {
		parts = append(parts, fmtDuration(m.duration))
	}

	return statusStyle.Render(" " + strings.Join(parts, " · "))
}
