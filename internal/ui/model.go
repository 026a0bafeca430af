// ABOUTME: Bubbletea model for the operator console
// ABOUTME: Shows the tone set and reader progress above a command line
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/iqsource/internal/stream"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxLines is how much session output the console keeps
const maxLines = 200

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	toneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model represents the console state
type Model struct {
	title string
	sink  string

	freqs   []float64
	stats   stream.Stats
	statsFn func() stream.Stats

	lines []string
	input string

	submit func(line string) tea.Cmd

	startTime time.Time
	quitting  bool

	width  int
	height int
}

// StatusMsg replaces the displayed frequency set
type StatusMsg struct {
	Frequencies []float64
}

// OutputMsg carries text written by the session
type OutputMsg string

type tickMsg time.Time

func tickEvery() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the stats refresh
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.statsFn != nil {
			m.stats = m.statsFn()
		}
		return m, tickEvery()
	case StatusMsg:
		m.freqs = append([]float64{}, msg.Frequencies...)
	case OutputMsg:
		m.appendOutput(string(msg))
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEnter:
		line := strings.TrimSpace(m.input)
		m.input = ""
		if line == "" {
			return m, nil
		}
		m.appendOutput("> " + line)
		if line == "quit" {
			return m.quit()
		}
		return m, m.send(line)
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			r := []rune(m.input)
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		if m.input == "" && msg.String() == "q" {
			return m.quit()
		}
		m.input += string(msg.Runes)
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Sequence(m.send("quit"), tea.Quit)
}

func (m Model) send(line string) tea.Cmd {
	if m.submit == nil {
		return nil
	}
	return m.submit(line)
}

func (m *Model) appendOutput(text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		m.lines = append(m.lines, line)
	}
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

// View renders the console
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Sink: "))
	b.WriteString(valueStyle.Render(m.sink))
	b.WriteString("   ")
	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Source: "))
	b.WriteString(valueStyle.Render(truncate(m.stats.Current, 60)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Items: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d  rotations: %d  rewinds: %d  pending: %d",
		m.stats.Items, m.stats.Rotations, m.stats.Rewinds, m.stats.Pending)))
	b.WriteString("\n\n")

	b.WriteString(toneStyle.Render(fmt.Sprintf("Tones (%d)", len(m.freqs))))
	b.WriteString("\n")
	if len(m.freqs) == 0 {
		b.WriteString(valueStyle.Render("  none, output is silent"))
		b.WriteString("\n")
	}
	for i, f := range m.freqs {
		b.WriteString(fmt.Sprintf("  %d: %g MHz\n", i, f))
	}
	b.WriteString("\n")

	for _, line := range m.visibleLines() {
		b.WriteString(valueStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString(promptStyle.Render("> "))
	b.WriteString(m.input)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Enter: run command  help: list commands  q on empty line or Ctrl+C: quit"))

	return b.String()
}

// visibleLines fits the output tail into what the terminal has left
func (m Model) visibleLines() []string {
	room := 10
	if m.height > 0 {
		room = m.height - 12 - len(m.freqs)
	}
	if room < 3 {
		room = 3
	}
	if len(m.lines) <= room {
		return m.lines
	}
	return m.lines[len(m.lines)-room:]
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return "..." + s[len(s)-length+3:]
}
