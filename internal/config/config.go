// ABOUTME: YAML configuration for the iqsource daemon
// ABOUTME: Defaults first, file values on top, then validation
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/iqsource/pkg/synth"
)

// Sink modes for delivered items
const (
	SinkStdout  = "stdout"
	SinkWS      = "ws"
	SinkMonitor = "monitor"
	SinkDiscard = "discard"
)

type Config struct {
	Stream  StreamConfig  `yaml:"stream"`
	Synth   SynthConfig   `yaml:"synth"`
	Sink    SinkConfig    `yaml:"sink"`
	Server  ServerConfig  `yaml:"server"`
	Monitor MonitorConfig `yaml:"monitor"`
	Logging LoggingConfig `yaml:"logging"`
}

type StreamConfig struct {
	ItemSize int    `yaml:"item_size"`
	Repeat   bool   `yaml:"repeat"`
	Source   string `yaml:"source"`
}

type SynthConfig struct {
	OutputDir          string    `yaml:"output_dir"`
	Prefix             string    `yaml:"prefix"`
	BlockSize          int       `yaml:"block_size"`
	TransitionSteps    int       `yaml:"transition_steps"`
	InitialFrequencies []float64 `yaml:"initial_frequencies"`
	Interactive        bool      `yaml:"interactive"`
}

type SinkConfig struct {
	Mode   string `yaml:"mode"`
	Output string `yaml:"output"`
	Batch  int    `yaml:"batch"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
	MDNS bool   `yaml:"mdns"`
}

type MonitorConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Volume     int `yaml:"volume"` // percent, 0-100
}

type LoggingConfig struct {
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "iqsource"
	}

	return &Config{
		Stream: StreamConfig{
			ItemSize: synth.BytesPerPair,
			Repeat:   true,
		},
		Synth: SynthConfig{
			OutputDir:       ".",
			BlockSize:       synth.DefaultBlockSize,
			TransitionSteps: synth.DefaultTransitionSteps,
		},
		Sink: SinkConfig{
			Mode:  SinkStdout,
			Batch: 4096,
		},
		Server: ServerConfig{
			Port: 8928,
			Name: hostname + "-iqsource",
			MDNS: true,
		},
		Monitor: MonitorConfig{
			SampleRate: 48000,
			Volume:     100,
		},
		Logging: LoggingConfig{
			File: "iqsource.log",
		},
	}
}

// Load reads path over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the sink mode
func (c *Config) Validate() error {
	if c.Stream.ItemSize <= 0 {
		return fmt.Errorf("stream.item_size must be positive, got %d", c.Stream.ItemSize)
	}
	if c.Synth.BlockSize <= 0 {
		return fmt.Errorf("synth.block_size must be positive, got %d", c.Synth.BlockSize)
	}
	if c.Synth.TransitionSteps <= 0 {
		return fmt.Errorf("synth.transition_steps must be positive, got %d", c.Synth.TransitionSteps)
	}
	if c.Sink.Batch <= 0 {
		return fmt.Errorf("sink.batch must be positive, got %d", c.Sink.Batch)
	}

	switch c.Sink.Mode {
	case SinkStdout, SinkWS, SinkMonitor, SinkDiscard:
	default:
		return fmt.Errorf("unknown sink mode %q (want stdout, ws, monitor or discard)", c.Sink.Mode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Monitor.SampleRate <= 0 {
		return fmt.Errorf("monitor.sample_rate must be positive, got %d", c.Monitor.SampleRate)
	}
	if c.Monitor.Volume < 0 || c.Monitor.Volume > 100 {
		return fmt.Errorf("monitor.volume must be 0-100, got %d", c.Monitor.Volume)
	}
	return nil
}

// ParseFrequencies parses a comma-separated frequency list such as "1.5,2,7.25"
func ParseFrequencies(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	freqs := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frequency %q", p)
		}
		freqs = append(freqs, v)
	}
	return freqs, nil
}
