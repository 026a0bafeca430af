// ABOUTME: Entry point for the iqsource daemon
// ABOUTME: Parses flags over the YAML config, wires the block to its sink and console
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/Resonate-Protocol/iqsource/internal/config"
	"github.com/Resonate-Protocol/iqsource/internal/monitor"
	"github.com/Resonate-Protocol/iqsource/internal/server"
	"github.com/Resonate-Protocol/iqsource/internal/stream"
	"github.com/Resonate-Protocol/iqsource/internal/ui"
	"github.com/Resonate-Protocol/iqsource/internal/version"
	"github.com/Resonate-Protocol/iqsource/pkg/iqsource"
	"golang.org/x/term"
)

var (
	configFile  = flag.String("config", "", "YAML config file")
	itemSize    = flag.Int("item-size", 0, "Bytes per delivered item (default 8, one I/Q pair)")
	repeat      = flag.Bool("repeat", true, "Rewind the current source when nothing else is queued")
	source      = flag.String("source", "", "Start on this raw I/Q file instead of a synthesized block")
	sourceFD    = flag.Int("source-fd", -1, "Start on this already open file descriptor")
	freqs       = flag.String("freqs", "", "Initial frequencies in MHz, comma separated (e.g. 1.5,2.25)")
	interactive = flag.Bool("interactive", false, "Prompt for the initial frequencies")
	outDir      = flag.String("dir", "", "Directory for generated block files")
	prefix      = flag.String("prefix", "", "Prefix for generated block file names")
	blockSize   = flag.Int("block-size", 0, "I/Q pairs per static block")
	steps       = flag.Int("steps", 0, "I/Q pairs per transition block")
	sinkMode    = flag.String("sink", "", "Where items go: stdout, ws, monitor or discard")
	output      = flag.String("output", "", "Output file for the stdout sink (default: standard output)")
	port        = flag.Int("port", 0, "WebSocket server port")
	name        = flag.String("name", "", "Server friendly name (default: hostname-iqsource)")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	rate        = flag.Int("rate", 0, "Monitor playback sample rate")
	volume      = flag.Int("volume", 100, "Monitor playback volume (0-100)")
	logFile     = flag.String("log-file", "", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable the console, read commands from stdin")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	itemsOnStdout := cfg.Sink.Mode == config.SinkStdout && (cfg.Sink.Output == "" || cfg.Sink.Output == "-")
	useTUI := stdinTTY && !*noTUI && !itemsOnStdout

	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	// Standard output may be carrying items, so human output moves to stderr
	var human io.Writer = os.Stdout
	if itemsOnStdout {
		human = os.Stderr
	}

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(human, f))
	}

	log.Printf("Starting %s %s (sink: %s)", version.Product, version.Version, cfg.Sink.Mode)
	log.Printf("Logging to: %s", cfg.Logging.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var blockRef atomic.Pointer[iqsource.Block]

	sessCfg := iqsource.SessionConfig{
		Dir:             cfg.Synth.OutputDir,
		Prefix:          cfg.Synth.Prefix,
		BlockSize:       cfg.Synth.BlockSize,
		TransitionSteps: cfg.Synth.TransitionSteps,
		Initial:         cfg.Synth.InitialFrequencies,
		Interactive:     cfg.Synth.Interactive || (stdinTTY && len(cfg.Synth.InitialFrequencies) == 0 && cfg.Stream.Source == "" && *sourceFD < 0),
		Input:           os.Stdin,
		Output:          human,
		OnQuit:          cancel,
	}

	var console *ui.Console
	var consoleDone chan struct{}
	if useTUI {
		commands, commandWriter := io.Pipe()
		defer commandWriter.Close()

		console = ui.NewConsole(ui.Config{
			Title:    fmt.Sprintf("%s %s", version.Product, version.Version),
			Sink:     describeSink(cfg),
			Commands: commandWriter,
			Stats: func() stream.Stats {
				if b := blockRef.Load(); b != nil {
					return b.Stats()
				}
				return stream.Stats{}
			},
		})
		sessCfg.Input = commands
		sessCfg.Output = console
		sessCfg.OnChange = console.SetFrequencies

		consoleDone = make(chan struct{})
		go func() {
			defer close(consoleDone)
			if err := console.Run(); err != nil {
				log.Printf("Console error: %v", err)
			}
			cancel()
		}()
	}

	block, err := iqsource.New(iqsource.Config{
		ItemSize:   cfg.Stream.ItemSize,
		NoRepeat:   !cfg.Stream.Repeat,
		SourcePath: cfg.Stream.Source,
		SourceFD:   *sourceFD,
		UseFD:      *sourceFD >= 0,
		Session:    sessCfg,
	})
	if err != nil {
		if console != nil {
			console.Quit()
			<-consoleDone
		}
		log.Fatalf("Failed to create source: %v", err)
	}
	blockRef.Store(block)
	block.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received %v signal, shutting down gracefully...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runSink(ctx, cfg, block); err != nil && !errors.Is(err, stream.ErrClosed) {
			log.Printf("Sink error: %v", err)
		}
		cancel()
	}()

	<-ctx.Done()

	// Closing the block releases a sink blocked in Work
	if err := block.Close(); err != nil {
		log.Printf("Close error: %v", err)
	}
	wg.Wait()

	if console != nil {
		console.Quit()
		<-consoleDone
	}

	st := block.Stats()
	log.Printf("Stopped after %d items (%d rotations, %d rewinds)", st.Items, st.Rotations, st.Rewinds)
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var err error
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "item-size":
			cfg.Stream.ItemSize = *itemSize
		case "repeat":
			cfg.Stream.Repeat = *repeat
		case "source":
			cfg.Stream.Source = *source
		case "freqs":
			var parsed []float64
			if parsed, err = config.ParseFrequencies(*freqs); err == nil {
				cfg.Synth.InitialFrequencies = parsed
			}
		case "interactive":
			cfg.Synth.Interactive = *interactive
		case "dir":
			cfg.Synth.OutputDir = *outDir
		case "prefix":
			cfg.Synth.Prefix = *prefix
		case "block-size":
			cfg.Synth.BlockSize = *blockSize
		case "steps":
			cfg.Synth.TransitionSteps = *steps
		case "sink":
			cfg.Sink.Mode = *sinkMode
		case "output":
			cfg.Sink.Output = *output
		case "port":
			cfg.Server.Port = *port
		case "name":
			cfg.Server.Name = *name
		case "no-mdns":
			cfg.Server.MDNS = !*noMDNS
		case "rate":
			cfg.Monitor.SampleRate = *rate
		case "volume":
			cfg.Monitor.Volume = *volume
		case "log-file":
			cfg.Logging.File = *logFile
		}
	})
	if err != nil {
		return nil, err
	}

	if cfg.Stream.Source != "" && *sourceFD >= 0 {
		return nil, fmt.Errorf("-source and -source-fd are mutually exclusive")
	}
	return cfg, cfg.Validate()
}

func describeSink(cfg *config.Config) string {
	switch cfg.Sink.Mode {
	case config.SinkWS:
		return fmt.Sprintf("websocket :%d/stream", cfg.Server.Port)
	case config.SinkMonitor:
		return fmt.Sprintf("monitor %d Hz", cfg.Monitor.SampleRate)
	case config.SinkStdout:
		if cfg.Sink.Output != "" && cfg.Sink.Output != "-" {
			return "file " + cfg.Sink.Output
		}
		return "stdout"
	}
	return cfg.Sink.Mode
}

// runSink is the single consumer of the block until ctx ends or the block closes
func runSink(ctx context.Context, cfg *config.Config, block *iqsource.Block) error {
	switch cfg.Sink.Mode {
	case config.SinkWS:
		srv := server.New(server.Config{
			Port:       cfg.Server.Port,
			Name:       cfg.Server.Name,
			EnableMDNS: cfg.Server.MDNS,
			Batch:      cfg.Sink.Batch,
		}, block)
		go func() {
			<-ctx.Done()
			srv.Stop()
		}()
		return srv.Start()

	case config.SinkMonitor:
		mon, err := monitor.New(cfg.Monitor.SampleRate)
		if err != nil {
			return err
		}
		defer mon.Close()
		mon.SetVolume(cfg.Monitor.Volume)
		return mon.Play(ctx, iqsource.NewItemReader(block, cfg.Sink.Batch))

	case config.SinkDiscard:
		_, err := io.Copy(io.Discard, iqsource.NewItemReader(block, cfg.Sink.Batch))
		return err

	default:
		out := os.Stdout
		if cfg.Sink.Output != "" && cfg.Sink.Output != "-" {
			file, err := os.Create(cfg.Sink.Output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer file.Close()
			out = file
		}
		_, err := io.Copy(out, iqsource.NewItemReader(block, cfg.Sink.Batch))
		return err
	}
}
