// ABOUTME: Session controller owning the live frequency set
// ABOUTME: Reads operator commands, synthesizes blocks and feeds the reader's chain
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Resonate-Protocol/iqsource/internal/stream"
	"github.com/Resonate-Protocol/iqsource/pkg/synth"
)

// ErrIndexRange is reported when a command names a tone that does not exist
var ErrIndexRange = errors.New("index out of range")

// Sink accepts generated sources in delivery order
type Sink interface {
	Enqueue(s stream.Source) error
}

// Config holds controller configuration
type Config struct {
	// Dir is where generated block files are written (default ".")
	Dir string

	// Prefix is prepended to every generated file name
	Prefix string

	// BlockSize is the I/Q pair count of static blocks
	BlockSize int

	// TransitionSteps is the I/Q pair count of transition blocks
	TransitionSteps int

	// Interactive prompts for the initial set on Input; otherwise Initial is used
	Interactive bool
	Initial     []float64

	// Input carries operator commands, Output receives replies
	Input  io.Reader
	Output io.Writer

	// OnChange receives a copy of the set after every mutation
	OnChange func(freqs []float64)

	// OnQuit is called when the operator issues quit. End of input is not quit.
	OnQuit func()
}

// Controller interprets commands against its frequency set.
// The set and the file counter are only touched by the goroutine running
// Init, Run or Execute.
type Controller struct {
	cfg  Config
	sink Sink
	in   *bufio.Scanner
	out  io.Writer

	freqs   []float64
	counter int

	// tokens buffers whitespace-separated input during the setup prompts
	tokens []string
}

// New creates a controller that enqueues generated sources into sink
func New(cfg Config, sink Sink) *Controller {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = synth.DefaultBlockSize
	}
	if cfg.TransitionSteps <= 0 {
		cfg.TransitionSteps = synth.DefaultTransitionSteps
	}
	if cfg.Input == nil {
		cfg.Input = strings.NewReader("")
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}

	return &Controller{
		cfg:  cfg,
		sink: sink,
		in:   bufio.NewScanner(cfg.Input),
		out:  cfg.Output,
	}
}

// SetSink replaces the destination for generated sources. The aggregate
// block uses this once the reader exists, after Init has produced its
// starting source.
func (c *Controller) SetSink(sink Sink) {
	c.sink = sink
}

// Setup establishes the starting frequency set without synthesizing
// anything. Used when the reader starts on an externally supplied source.
func (c *Controller) Setup() error {
	if c.cfg.Interactive {
		freqs, err := c.promptInitial()
		if err != nil {
			return fmt.Errorf("initial frequencies: %w", err)
		}
		c.freqs = freqs
	} else {
		c.freqs = append([]float64{}, c.cfg.Initial...)
	}

	sort.Float64s(c.freqs)
	c.notify()
	log.Printf("Session initialized with %d frequencies: %v", len(c.freqs), c.freqs)
	return nil
}

// Init runs Setup and synthesizes the first static block. The returned
// source is meant to become the reader's initial current source; it is not
// enqueued.
func (c *Controller) Init() (stream.Source, error) {
	if err := c.Setup(); err != nil {
		return nil, err
	}

	src, err := c.static(c.freqs)
	if err != nil {
		return nil, fmt.Errorf("initial block: %w", err)
	}
	return src, nil
}

// Run processes commands until quit, end of input or ctx cancellation.
// On return the input is closed when it is an io.Closer, which ends the
// line reader goroutine.
func (c *Controller) Run(ctx context.Context) error {
	defer c.closeInput()

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for c.in.Scan() {
			select {
			case lines <- c.in.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- c.in.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Session stopping")
			return nil

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read commands: %w", err)
					}
				default:
				}
				log.Printf("Session input closed")
				return nil
			}
			if c.Execute(line) {
				log.Printf("Session quit requested")
				if c.cfg.OnQuit != nil {
					c.cfg.OnQuit()
				}
				return nil
			}
		}
	}
}

// closeInput releases the command stream. A descriptor the runtime cannot
// poll, such as a terminal stdin, keeps its reader parked until the next
// line or end of input; the goroutine then sees ctx and exits.
func (c *Controller) closeInput() {
	closer, ok := c.cfg.Input.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Printf("Session input close: %v", err)
	}
}

// Frequencies returns a copy of the current set.
// Not safe to call while Run is active on another goroutine.
func (c *Controller) Frequencies() []float64 {
	return append([]float64{}, c.freqs...)
}

// Generated returns how many block files have been named so far
func (c *Controller) Generated() int {
	return c.counter
}

func (c *Controller) notify() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(c.Frequencies())
	}
}

// nextPath reserves a never-reused file name for the given block kind
func (c *Controller) nextPath(kind string) string {
	name := fmt.Sprintf("%s%s_%d.iq", c.cfg.Prefix, kind, c.counter)
	c.counter++
	return filepath.Join(c.cfg.Dir, name)
}

func (c *Controller) static(freqs []float64) (stream.Source, error) {
	f, err := synth.WriteStatic(c.nextPath("stat"), freqs, c.cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	return stream.NewFileSource(f), nil
}

func (c *Controller) transition(from, to []float64) (stream.Source, error) {
	if len(from) != len(to) {
		return nil, synth.ErrLengthMismatch
	}
	f, err := synth.WriteTransition(c.nextPath("move"), from, to, c.cfg.TransitionSteps)
	if err != nil {
		return nil, err
	}
	return stream.NewFileSource(f), nil
}

// enqueue hands sources to the sink in order, closing whatever it could not deliver
func (c *Controller) enqueue(sources ...stream.Source) error {
	for i, s := range sources {
		if c.sink == nil {
			closeAll(sources[i:])
			return errors.New("no sink attached")
		}
		if err := c.sink.Enqueue(s); err != nil {
			closeAll(sources[i+1:])
			return fmt.Errorf("enqueue %s: %w", s.Name(), err)
		}
		log.Printf("Source added: %s", s.Name())
	}
	return nil
}

func closeAll(sources []stream.Source) {
	for _, s := range sources {
		s.Close()
	}
}
