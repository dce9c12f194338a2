package turn

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
)

// Mode selects how a turn is processed.
type Mode string

const (
	// Normal runs the full pipeline.
	Normal Mode = "normal"
	// Local appends the input to history and returns without dispatching.
	Local Mode = "local"
	// PromptCoach answers with the prompt-refinement meta-prompt.
	PromptCoach Mode = "prompt_coach"
)

// ParseMode converts s to a Mode. An empty string yields the zero Mode,
// which lets the pipeline decide.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "", Normal, Local, PromptCoach:
		return m, nil
	}
	return "", fmt.Errorf("turn: unknown mode %q", s)
}

// Coaching replies the user can give to steer an active session.
const (
	coachQuit    = "quit"
	coachUse     = "use this prompt"
	coachRestart = "restart"
)

var revisedPromptRe = regexp.MustCompile(`(?s)<revised_prompt>\s*(.*?)\s*</revised_prompt>`)

// coaching is the outcome of mode resolution.
type coaching struct {
	mode Mode
	// text replaces the user input in the dispatched conversation when set.
	text string
	// restart drops prior messages from the dispatched conversation.
	restart bool
}

// resolveMode decides the turn's mode once, from the requested mode and the
// coaching state left in prior history.
func resolveMode(requested Mode, input string, prior []message.Message) coaching {
	if requested != "" {
		return coaching{mode: requested}
	}

	last, ok := lastAssistant(prior)
	if !ok || Mode(last.Mode) != PromptCoach {
		return coaching{mode: Normal}
	}

	switch strings.ToLower(strings.TrimSpace(strings.TrimRight(input, ".!"))) {
	case coachQuit:
		return coaching{mode: Normal}
	case coachUse:
		c := coaching{mode: Normal}
		if m := revisedPromptRe.FindAllStringSubmatch(last.TextContent(), -1); len(m) > 0 {
			c.text = m[len(m)-1][1]
		}
		return c
	case coachRestart:
		return coaching{mode: PromptCoach, restart: true}
	default:
		return coaching{mode: PromptCoach}
	}
}

func lastAssistant(msgs []message.Message) (message.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role.Assistant && len(msgs[i].ToolCalls()) == 0 {
			return msgs[i], true
		}
	}
	return message.Message{}, false
}
