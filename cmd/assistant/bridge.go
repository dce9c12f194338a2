package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/assistant/pkg/engine"
	"github.com/germanamz/assistant/pkg/turn"
)

// startBridge forwards the session's pipeline transitions to the program.
// The goroutine only calls p.Send. The returned cancel function waits for it
// to exit.
func startBridge(ctx context.Context, p *tea.Program, chatID string, events *engine.EventBus) context.CancelFunc {
	bridgeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	sub := events.Subscribe(64)

	wg.Go(func() {
		defer events.Unsubscribe(sub)
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if ev.Kind != engine.EventTransition || ev.ChatID != chatID {
					continue
				}
				if t, ok := ev.Data.(turn.Transition); ok {
					p.Send(transitionMsg{t: t})
				}
			}
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}
