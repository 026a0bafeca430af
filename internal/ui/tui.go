// ABOUTME: Console program wiring between bubbletea and the session
// ABOUTME: Typed lines go to the session's input, session output comes back as messages
package ui

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Resonate-Protocol/iqsource/internal/stream"
	tea "github.com/charmbracelet/bubbletea"
)

// Config configures the console
type Config struct {
	// Title heads the screen
	Title string

	// Sink describes where items are going
	Sink string

	// Commands receives every submitted line, newline terminated
	Commands io.Writer

	// Stats is polled for reader progress
	Stats func() stream.Stats
}

// Console runs the operator console
type Console struct {
	program *tea.Program
}

// NewModel creates the console model
func NewModel(cfg Config) Model {
	if cfg.Title == "" {
		cfg.Title = "iqsource"
	}

	m := Model{
		title:     cfg.Title,
		sink:      cfg.Sink,
		statsFn:   cfg.Stats,
		startTime: time.Now(),
	}

	if cfg.Commands != nil {
		m.submit = func(line string) tea.Cmd {
			return func() tea.Msg {
				if _, err := fmt.Fprintln(cfg.Commands, line); err != nil {
					log.Printf("Console: failed to submit %q: %v", line, err)
				}
				return nil
			}
		}
	}
	return m
}

// NewConsole creates a console ready to Run
func NewConsole(cfg Config) *Console {
	return &Console{
		program: tea.NewProgram(NewModel(cfg), tea.WithAltScreen()),
	}
}

// Run blocks until the operator quits or Quit is called
func (c *Console) Run() error {
	_, err := c.program.Run()
	return err
}

// Quit stops the console from another goroutine
func (c *Console) Quit() {
	c.program.Quit()
}

// SetFrequencies updates the displayed tone set. Suitable as the session's
// change callback.
func (c *Console) SetFrequencies(freqs []float64) {
	c.program.Send(StatusMsg{Frequencies: freqs})
}

// Write shows session output in the console
func (c *Console) Write(p []byte) (int, error) {
	c.program.Send(OutputMsg(string(p)))
	return len(p), nil
}
