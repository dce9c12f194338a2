package main

import (
	"fmt"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/turn"
)

// renderUserMessage formats a user message for the scrollback, indenting
// continuation lines to align with the first line.
func renderUserMessage(text string) string {
	prefix := userPrefixStyle.Render("You > ")
	lines := strings.Split(text, "\n")

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(lines[0])
	for _, line := range lines[1:] {
		sb.WriteString("\n      ")
		sb.WriteString(line)
	}
	return userBlockStyle.Render(sb.String())
}

// renderResult formats the messages of a finished turn. A blocked turn
// renders as a single warning block.
func renderResult(res turn.Result) string {
	if res.Violation != nil {
		where := "your message"
		if res.Direction == guardrails.Output {
			where = "the reply"
		}
		text := fmt.Sprintf("Blocked: %s violates the content policy", where)
		if len(res.Violation.Violations) > 0 {
			text += " (" + strings.Join(res.Violation.Violations, ", ") + ")"
		}
		return warnBlockStyle.Render(text)
	}

	blocks := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		if s := renderMessage(m); s != "" {
			blocks = append(blocks, s)
		}
	}

	if res.PersistErr != nil {
		blocks = append(blocks, warnBlockStyle.Render("history not fully saved: "+res.PersistErr.Error()))
	}

	return strings.Join(blocks, "\n")
}

func renderMessage(m message.Message) string {
	switch m.Role {
	case role.Tool:
		var lines []string
		for _, tr := range m.ToolResults() {
			style := toolResultStyle
			if tr.IsError() {
				style = toolErrorStyle
			}
			lines = append(lines, style.Render("  "+treeCorner+truncate(tr.Content, 120)))
		}
		return strings.Join(lines, "\n")

	case role.Assistant:
		var lines []string
		if text := strings.TrimSpace(m.TextContent()); text != "" {
			lines = append(lines, answerPrefixStyle.Render("Assistant >")+"\n"+answerBlockStyle.Render(renderMarkdown(text)))
		}
		for _, tc := range m.ToolCalls() {
			lines = append(lines, "  "+toolNameStyle.Render(tc.Name)+dimStyle.Render(" "+truncate(tc.Arguments, 80)))
		}
		if len(m.Citations) > 0 {
			lines = append(lines, renderCitations(m.Citations))
		}
		return strings.Join(lines, "\n")

	default:
		return renderUserMessage(m.TextContent())
	}
}

func renderCitations(urls []string) string {
	var sb strings.Builder
	sb.WriteString("  Sources:")
	for i, u := range urls {
		fmt.Fprintf(&sb, "\n  [%d] %s", i+1, u)
	}
	return dimStyle.Render(sb.String())
}

// renderError formats an error block.
func renderError(err error) string {
	return errorBlockStyle.Render("error: " + err.Error())
}

// stateLabel describes a pipeline state for the spinner line.
func stateLabel(t turn.Transition) string {
	switch t.State {
	case turn.StateAugment:
		return "Searching the knowledge base..."
	case turn.StateInputGuard:
		return "Checking your message..."
	case turn.StateDispatch:
		if t.Round > 0 {
			return fmt.Sprintf("Thinking (round %d)...", t.Round+1)
		}
		return randomThinkingMessage()
	case turn.StateToolExec:
		return "Running tools..."
	case turn.StateOutputGuard:
		return "Checking the reply..."
	case turn.StatePersist:
		return "Saving..."
	default:
		return ""
	}
}
