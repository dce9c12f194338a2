package main

import (
	"flag"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/assistant/pkg/turn"
)

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	common := addCommonFlags(fs)
	model := fs.String("model", "", "model id or alias (default: chosen per message)")
	mode := fs.String("mode", "", "start in normal, local or prompt_coach mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var pinned turn.Mode
	if *mode != "" {
		m, err := turn.ParseMode(*mode)
		if err != nil {
			return err
		}
		pinned = m
	}

	// The TUI owns the terminal; only warnings reach stderr.
	logger := newLogger(*common.debug)
	if !*common.debug {
		logger = newQuietLogger()
	}

	ctx, cancel, eng, err := startEngine(common, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = eng.Close() }()

	go eng.Run(ctx)

	initMarkdownRenderer(100)

	sess := eng.NewSession(*model)
	defer eng.CloseSession(sess.ID())
	sess.SetMode(pinned)

	p := tea.NewProgram(newAppModel(ctx, eng, sess))

	go func() {
		p.Send(programReadyMsg{program: p})
	}()

	_, err = p.Run()
	return err
}
