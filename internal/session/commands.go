// ABOUTME: Operator command dispatch for the session controller
// ABOUTME: Each mutating command synthesizes and enqueues its blocks before committing
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/iqsource/internal/ingest"
	"github.com/Resonate-Protocol/iqsource/internal/stream"
	"github.com/Resonate-Protocol/iqsource/pkg/synth"
)

const usage = `commands:
  list                      show the frequency set
  sort                      sort the set ascending
  add <value>               append a tone (MHz)
  delete <index>            remove a tone
  move <index> <value>      retune one tone
  moveall <v1> ... <vN>     retune every tone
  load <path>               queue an I/Q file (.iq .cf32 .bin .raw) or convert .mp3/.flac
  export <path>             write the current static block as parquet
  help                      show this text
  quit                      stop the session
`

// Execute runs one command line and reports whether the session should end.
// Tokens after the ones a command needs are ignored.
func (c *Controller) Execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "quit":
		return true
	case "help":
		fmt.Fprint(c.out, usage)
	case "list":
		c.printSet()
	case "sort":
		sort.Float64s(c.freqs)
		c.notify()
		c.printSet()
	case "move":
		err = c.move(args)
	case "moveall":
		err = c.moveAll(args)
	case "delete":
		err = c.remove(args)
	case "add":
		err = c.add(args)
	case "load":
		err = c.load(args)
	case "export":
		err = c.export(args)
	default:
		err = fmt.Errorf("unknown command: %s (try help)", cmd)
	}

	if err != nil {
		log.Printf("Command %q failed: %v", line, err)
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
	return false
}

func (c *Controller) printSet() {
	fmt.Fprintf(c.out, "%d frequencies\n", len(c.freqs))
	for i, f := range c.freqs {
		fmt.Fprintf(c.out, "%d: %g\n", i, f)
	}
}

func (c *Controller) move(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: move <index> <value>")
	}
	idx, err := c.index(args[0])
	if err != nil {
		return err
	}
	v, err := parseFrequency(args[1])
	if err != nil {
		return err
	}

	next := c.Frequencies()
	next[idx] = v
	return c.retune(next)
}

func (c *Controller) moveAll(args []string) error {
	if len(args) < len(c.freqs) {
		return fmt.Errorf("moveall needs %d values, got %d", len(c.freqs), len(args))
	}

	next := make([]float64, len(c.freqs))
	for i := range next {
		v, err := parseFrequency(args[i])
		if err != nil {
			return err
		}
		next[i] = v
	}
	return c.retune(next)
}

// retune queues a transition toward next followed by next's static block
func (c *Controller) retune(next []float64) error {
	move, err := c.transition(c.freqs, next)
	if err != nil {
		return fmt.Errorf("transition block: %w", err)
	}
	stat, err := c.static(next)
	if err != nil {
		move.Close()
		return fmt.Errorf("static block: %w", err)
	}

	if err := c.enqueue(move, stat); err != nil {
		return err
	}
	c.commit(next)
	return nil
}

func (c *Controller) remove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <index>")
	}
	idx, err := c.index(args[0])
	if err != nil {
		return err
	}

	next := append(c.Frequencies()[:idx:idx], c.freqs[idx+1:]...)
	return c.replace(next)
}

func (c *Controller) add(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: add <value>")
	}
	v, err := parseFrequency(args[0])
	if err != nil {
		return err
	}

	return c.replace(append(c.Frequencies(), v))
}

// replace queues the static block of next and adopts it
func (c *Controller) replace(next []float64) error {
	stat, err := c.static(next)
	if err != nil {
		return fmt.Errorf("static block: %w", err)
	}
	if err := c.enqueue(stat); err != nil {
		return err
	}
	c.commit(next)
	return nil
}

func (c *Controller) commit(next []float64) {
	c.freqs = next
	c.notify()
	c.printSet()
}

func (c *Controller) load(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: load <path>")
	}
	path := args[0]

	var src stream.Source
	switch {
	case ingest.IsRaw(path):
		fs, err := stream.OpenFile(path)
		if err != nil {
			return err
		}
		src = fs
	case ingest.Supported(path):
		f, err := ingest.Convert(path, c.nextPath("load"))
		if err != nil {
			return err
		}
		src = stream.NewFileSource(f)
	default:
		return fmt.Errorf("cannot stream %s: unknown file type", path)
	}

	if err := c.enqueue(src); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "queued %s\n", src.Name())
	return nil
}

func (c *Controller) export(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: export <path>")
	}

	freqs, err := json.Marshal(c.freqs)
	if err != nil {
		return fmt.Errorf("encode frequencies: %w", err)
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}

	rows, err := synth.ExportParquet(f, synth.Static(c.freqs, c.cfg.BlockSize), map[string]string{
		"frequencies":   string(freqs),
		"block_size":    strconv.Itoa(c.cfg.BlockSize),
		"angular_scale": strconv.FormatFloat(synth.AngularScale, 'g', -1, 64),
	})
	if err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", args[0], err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}

	fmt.Fprintf(c.out, "exported %d pairs to %s\n", rows, args[0])
	return nil
}

func (c *Controller) index(arg string) (int, error) {
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", arg)
	}
	if idx < 0 || idx >= len(c.freqs) {
		return 0, fmt.Errorf("%w: %d (have %d frequencies)", ErrIndexRange, idx, len(c.freqs))
	}
	return idx, nil
}

func parseFrequency(arg string) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q", arg)
	}
	return v, nil
}
