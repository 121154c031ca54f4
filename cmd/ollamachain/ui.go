// This file implements the full-screen progress view for `run -i` using
// bubbletea. The agent runs in its own goroutine and feeds the TUI through
// an event channel; the final answer prints after the program exits so it
// survives in the scrollback.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/midu16/ollama-chain-sub000/internal/agent"
)

// runEvent is one update from the agent goroutine to the TUI.
type runEvent struct {
	phase  agent.Phase
	detail string
	step   *agent.StepUpdate
	res    *agent.Result
	err    error
	done   bool
}

// teaObserver forwards agent progress into the TUI event channel. Sends
// never block: a stalled UI drops progress lines rather than the run.
type teaObserver struct{ ch chan runEvent }

func (o teaObserver) OnPhase(phase agent.Phase, detail string) {
	select {
	case o.ch <- runEvent{phase: phase, detail: detail}:
	default:
	}
}

func (o teaObserver) OnStep(u agent.StepUpdate) {
	select {
	case o.ch <- runEvent{step: &u}:
	default:
	}
}

type runEventMsg runEvent

// runModel is the bubbletea model for one goal's progress.
type runModel struct {
	goal    string
	styles  cliStyles
	spinner spinner.Model
	events  chan runEvent
	cancel  context.CancelFunc

	lines []string
	res   *agent.Result
	err   error
	done  bool
	width int
}

func newRunModel(goal string, events chan runEvent, cancel context.CancelFunc) runModel {
	styles := newCLIStyles()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Phase
	return runModel{
		goal:    goal,
		styles:  styles,
		spinner: sp,
		events:  events,
		cancel:  cancel,
		width:   100,
	}
}

func waitEvent(ch chan runEvent) tea.Cmd {
	return func() tea.Msg { return runEventMsg(<-ch) }
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitEvent(m.events))
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case runEventMsg:
		ev := runEvent(msg)
		switch {
		case ev.done:
			m.res, m.err = ev.res, ev.err
			m.done = true
			return m, tea.Quit
		case ev.step != nil:
			m.lines = append(m.lines, m.styles.stepLabel(*ev.step))
		default:
			m.lines = append(m.lines, fmt.Sprintf("%s %s",
				m.styles.phaseLabel(ev.phase), m.styles.Muted.Render(ev.detail)))
		}
		return m, waitEvent(m.events)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m runModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("ollama-chain"))
	sb.WriteString(" ")
	sb.WriteString(m.styles.Muted.Render(m.goal))
	sb.WriteString("\n\n")
	for _, line := range m.lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if !m.done {
		sb.WriteString(fmt.Sprintf("\n%s working (ctrl+c to cancel)\n", m.spinner.View()))
	}
	return sb.String()
}

func runGoalInteractive(goal string) error {
	events := make(chan runEvent, 256)
	st, err := buildStack(teaObserver{ch: events})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := withSignals(context.Background())
	defer cancel()

	go func() {
		res, rerr := st.agent.Run(ctx, goal)
		events <- runEvent{res: res, err: rerr, done: true}
	}()

	p := tea.NewProgram(newRunModel(goal, events, cancel))
	out, err := p.Run()
	if err != nil {
		return err
	}

	m, ok := out.(runModel)
	if !ok {
		return nil
	}
	if m.res == nil {
		// Canceled before the run produced a result.
		return m.err
	}
	printResult(m.res, m.err, m.styles, min(m.width, 100))
	return nil
}
