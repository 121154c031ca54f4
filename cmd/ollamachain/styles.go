package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/midu16/ollama-chain-sub000/internal/agent"
	"github.com/midu16/ollama-chain-sub000/internal/planner"
)

// Terminal palette. Standard ANSI indices so the colors follow the user's
// terminal theme instead of fighting it.
var (
	colorAccent  = lipgloss.Color("6")  // cyan
	colorOK      = lipgloss.Color("2")  // green
	colorWarn    = lipgloss.Color("3")  // yellow
	colorBad     = lipgloss.Color("1")  // red
	colorMuted   = lipgloss.Color("8")  // bright black
	colorEmphase = lipgloss.Color("12") // bright blue
)

// cliStyles holds the styled fragments the plain (non-TUI) output uses.
type cliStyles struct {
	Phase   lipgloss.Style
	Step    lipgloss.Style
	OK      lipgloss.Style
	Fail    lipgloss.Style
	Warn    lipgloss.Style
	Muted   lipgloss.Style
	Title   lipgloss.Style
	Answer  lipgloss.Style
	Divider lipgloss.Style
}

func newCLIStyles() cliStyles {
	return cliStyles{
		Phase:   lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		Step:    lipgloss.NewStyle().Foreground(colorEmphase),
		OK:      lipgloss.NewStyle().Foreground(colorOK),
		Fail:    lipgloss.NewStyle().Foreground(colorBad),
		Warn:    lipgloss.NewStyle().Foreground(colorWarn),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Title:   lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Underline(true),
		Answer:  lipgloss.NewStyle().BorderLeft(true).BorderStyle(lipgloss.ThickBorder()).BorderForeground(colorAccent).PaddingLeft(1),
		Divider: lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func (s cliStyles) divider(width int) string {
	if width <= 0 {
		width = 60
	}
	return s.Divider.Render(strings.Repeat("─", width))
}

// phaseLabel renders a phase change for the progress stream.
func (s cliStyles) phaseLabel(phase agent.Phase) string {
	label := strings.ToUpper(string(phase))
	switch phase {
	case agent.PhaseDone:
		return s.OK.Render("● " + label)
	case agent.PhaseReplanning:
		return s.Warn.Render("● " + label)
	default:
		return s.Phase.Render("● " + label)
	}
}

// stepLabel renders one step transition.
func (s cliStyles) stepLabel(u agent.StepUpdate) string {
	switch u.Status {
	case planner.StatusCompleted:
		return fmt.Sprintf("  %s step %d %s %s", s.OK.Render("✓"), u.StepID, u.Description, s.Muted.Render(u.Detail))
	case planner.StatusFailed:
		return fmt.Sprintf("  %s step %d %s %s", s.Fail.Render("✗"), u.StepID, u.Description, s.Muted.Render(u.Detail))
	default:
		return fmt.Sprintf("  %s step %d %s %s", s.Step.Render("→"), u.StepID, u.Description, s.Muted.Render(u.Detail))
	}
}

// renderMarkdown renders the answer for the terminal. Falls back to the raw
// text when the renderer cannot be built (e.g. no TTY detection).
func renderMarkdown(text string, width int) string {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
