package main

import (
	"fmt"
	"strings"

	"github.com/germanamz/assistant/pkg/turn"
)

// command is a parsed slash command.
type command struct {
	name string
	arg  string
}

// parseCommand splits "/name arg" input. ok is false for plain messages.
func parseCommand(text string) (command, bool) {
	if !strings.HasPrefix(text, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// parseModeArg maps a /mode argument to a turn mode. "auto" clears the
// pinned mode so history decides.
func parseModeArg(arg string) (turn.Mode, error) {
	if arg == "" || arg == "auto" {
		return "", nil
	}
	m, err := turn.ParseMode(arg)
	if err != nil {
		return "", fmt.Errorf("unknown mode %q (normal, local, prompt_coach, auto)", arg)
	}
	return m, nil
}

func helpText() string {
	return dimStyle.Render(
		"Commands:\n" +
			"  /help              Show this help message\n" +
			"  /mode <mode>       Set normal, local, prompt_coach or auto\n" +
			"  /coach             Start prompt coaching\n" +
			"  /models            List available models\n" +
			"  /usage             Show token usage per model\n" +
			"  /quit              Exit the chat\n\n" +
			"Shortcuts:\n" +
			"  Enter              Submit message\n" +
			"  Alt+Enter          New line\n" +
			"  Ctrl+C             Exit",
	)
}
