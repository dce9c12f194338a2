package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/assistant/pkg/engine"
	"github.com/germanamz/assistant/pkg/turn"
)

// appState represents the application state machine.
type appState int

const (
	stateIdle appState = iota
	stateProcessing
)

// appModel is the root bubbletea model. Finished turns are printed to the
// terminal scrollback; only the spinner, input box and status bar are live.
type appModel struct {
	ctx          context.Context
	eng          *engine.Engine
	sess         *engine.Session
	inputBox     inputModel
	spinner      spinner.Model
	statusBar    statusBarModel
	state        appState
	label        string
	coachOnce    bool
	cancelBridge context.CancelFunc
	width        int
	height       int
	sendStart    time.Time
}

func newAppModel(ctx context.Context, eng *engine.Engine, sess *engine.Session) appModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	return appModel{
		ctx:       ctx,
		eng:       eng,
		sess:      sess,
		inputBox:  newInput(),
		spinner:   sp,
		statusBar: statusBarModel{usage: eng.Usage(), model: sess.Model()},
		state:     stateIdle,
	}
}

func (m appModel) Init() tea.Cmd {
	// Delay focusing the input so stale terminal escape-sequence responses
	// are drained first.
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return initDrainMsg{}
	})
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		initMarkdownRenderer(m.width - 4)
		m.inputBox.setWidth(m.width)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, m.quit()
		}
		if m.state == stateIdle {
			var cmd tea.Cmd
			m.inputBox, cmd = m.inputBox.Update(msg)
			return m, cmd
		}
		return m, nil

	case initDrainMsg:
		return m, m.inputBox.enable()

	case programReadyMsg:
		m.cancelBridge = startBridge(m.ctx, msg.program, m.sess.ID(), m.eng.Events())
		return m, nil

	case inputSubmitMsg:
		return m.handleSubmit(msg.text)

	case transitionMsg:
		if m.state == stateProcessing {
			if label := stateLabel(msg.t); label != "" {
				m.label = label
			}
		}
		return m, nil

	case sendCompleteMsg:
		return m.handleComplete(msg)

	case spinner.TickMsg:
		if m.state != stateProcessing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.state == stateIdle {
		var cmd tea.Cmd
		m.inputBox, cmd = m.inputBox.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m appModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := make([]string, 0, 3)
	if m.state == stateProcessing {
		sections = append(sections, " "+m.spinner.View()+" "+dimStyle.Render(m.label))
	}
	sections = append(sections, m.inputBox.View(), m.statusBar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *appModel) quit() tea.Cmd {
	if m.cancelBridge != nil {
		m.cancelBridge()
	}
	return tea.Quit
}

func (m *appModel) handleSubmit(text string) (tea.Model, tea.Cmd) {
	if cmd, ok := parseCommand(text); ok {
		return m.runCommand(cmd)
	}

	m.state = stateProcessing
	m.label = randomThinkingMessage()
	m.inputBox.disable()
	m.sendStart = time.Now()

	ctx, sess, start := m.ctx, m.sess, m.sendStart
	send := func() tea.Msg {
		res, err := sess.Send(ctx, text)
		return sendCompleteMsg{res: res, err: err, duration: time.Since(start)}
	}

	return m, tea.Batch(tea.Println(renderUserMessage(text)), send, m.spinner.Tick)
}

func (m *appModel) handleComplete(msg sendCompleteMsg) (tea.Model, tea.Cmd) {
	m.state = stateIdle
	m.label = ""
	m.statusBar.duration = msg.duration
	m.statusBar.model = m.sess.Model()

	if msg.res.Mode != "" {
		m.statusBar.mode = msg.res.Mode
	}
	if m.coachOnce {
		// Later coaching turns continue from history.
		m.coachOnce = false
		m.sess.SetMode("")
	}

	var out string
	switch {
	case msg.err != nil && m.ctx.Err() == nil:
		out = renderError(msg.err)
	case msg.err == nil:
		out = renderResult(msg.res)
	}

	focus := m.inputBox.enable()
	if out == "" {
		return m, focus
	}
	return m, tea.Batch(tea.Println(out), focus)
}

func (m *appModel) runCommand(c command) (tea.Model, tea.Cmd) {
	switch c.name {
	case "quit", "exit":
		return m, m.quit()

	case "help":
		return m, tea.Println(helpText())

	case "mode":
		mode, err := parseModeArg(c.arg)
		if err != nil {
			return m, tea.Println(renderError(err))
		}
		m.sess.SetMode(mode)
		m.coachOnce = false
		m.statusBar.mode = mode
		label := string(mode)
		if label == "" {
			label = "auto"
		}
		return m, tea.Println(dimStyle.Render("mode: " + label))

	case "coach":
		m.sess.SetMode(turn.PromptCoach)
		m.coachOnce = true
		m.statusBar.mode = turn.PromptCoach
		return m, tea.Println(dimStyle.Render("Describe what you want a prompt for. Say \"use this prompt\", \"restart\" or \"quit\" when done."))

	case "models":
		var sb strings.Builder
		for _, d := range m.eng.Models() {
			fmt.Fprintf(&sb, "  %-28s %-10s %s\n", d.ID, d.Provider, d.Cost)
		}
		return m, tea.Println(dimStyle.Render(strings.TrimRight(sb.String(), "\n")))

	case "usage":
		return m, tea.Println(dimStyle.Render(usageReport(m.eng)))

	default:
		return m, tea.Println(renderError(fmt.Errorf("unknown command /%s", c.name)))
	}
}

func usageReport(eng *engine.Engine) string {
	tr := eng.Usage()
	ids := tr.Models()
	if len(ids) == 0 {
		return "no usage yet"
	}

	var sb strings.Builder
	for _, id := range ids {
		tc := tr.Model(id)
		fmt.Fprintf(&sb, "  %-28s ↑%s ↓%s\n", id, fmtTokens(tc.InputTokens), fmtTokens(tc.OutputTokens))
	}
	total := tr.Total()
	fmt.Fprintf(&sb, "  %-28s ↑%s ↓%s (%d calls)", "total", fmtTokens(total.InputTokens), fmtTokens(total.OutputTokens), tr.Calls())
	return sb.String()
}
