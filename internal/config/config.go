// Package config loads the daemon settings from an optional YAML file.
// Anything the file leaves out keeps its default.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string `yaml:"log_level"`
	Locale   string `yaml:"locale"`

	Capture    CaptureConfig    `yaml:"capture"`
	Speech     SpeechConfig     `yaml:"speech"`
	Triggers   TriggersConfig   `yaml:"triggers"`
	Session    SessionConfig    `yaml:"session"`
	Completion CompletionConfig `yaml:"completion"`
	Bus        BusConfig        `yaml:"bus"`
	IPC        IPCConfig        `yaml:"ipc"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type CaptureConfig struct {
	// Source is one of mic, stdin, files, bus.
	Source       string        `yaml:"source"`
	Files        []string      `yaml:"files"`
	WhisperModel string        `yaml:"whisper_model"`
	RestartDelay time.Duration `yaml:"restart_delay"`
	SilenceRMS   float64       `yaml:"silence_rms"`
	SilenceHold  time.Duration `yaml:"silence_hold"`
	MaxUtterance time.Duration `yaml:"max_utterance"`
}

type SpeechConfig struct {
	// Output is one of espeak, console, bus.
	Output          string `yaml:"output"`
	Acknowledgement string `yaml:"acknowledgement"`
	// Cue is an optional mp3 played on wake.
	Cue  string     `yaml:"cue"`
	Duck DuckConfig `yaml:"duck"`
}

// DuckConfig lowers other playback streams while the assistant speaks.
type DuckConfig struct {
	Enabled bool          `yaml:"enabled"`
	Factor  float64       `yaml:"factor"`
	Floor   int           `yaml:"floor"`
	Fade    time.Duration `yaml:"fade"`
	Keep    []string      `yaml:"keep"`
}

type TriggersConfig struct {
	Wake     []string `yaml:"wake"`
	Playback []string `yaml:"playback"`
	Send     []string `yaml:"send"`
}

type SessionConfig struct {
	RequireWake     bool `yaml:"require_wake"`
	ResumeAfterSend bool `yaml:"resume_after_send"`
}

type CompletionConfig struct {
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	Proxy         string        `yaml:"proxy"`
	Timeout       time.Duration `yaml:"timeout"`
	FallbackReply string        `yaml:"fallback_reply"`
	ErrorReply    string        `yaml:"error_reply"`
}

type BusConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
	// Recognizer and Voice name the peers on the bus; empty accepts anyone.
	Recognizer string `yaml:"recognizer"`
	Voice      string `yaml:"voice"`
}

type IPCConfig struct {
	Socket string `yaml:"socket"`
}

type MetricsConfig struct {
	// Addr enables the Prometheus /metrics endpoint when set.
	Addr string `yaml:"addr"`
}

var (
	Sources = []string{"mic", "stdin", "files", "bus"}
	Outputs = []string{"espeak", "console", "bus"}
	Levels  = []string{"debug", "info", "warn", "error"}
)

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Locale:   "pt-BR",
		Capture: CaptureConfig{
			Source:       "mic",
			WhisperModel: "third_party/whisper.cpp/models/ggml-medium.bin",
		},
		Speech: SpeechConfig{
			Output:          "espeak",
			Acknowledgement: "Estou ouvindo",
			Duck: DuckConfig{
				Factor: 0.3,
				Floor:  5,
				Fade:   150 * time.Millisecond,
				Keep:   []string{"espeak-ng", "voxchat"},
			},
		},
		Triggers: TriggersConfig{
			Wake:     []string{"oi chat", "oi jarvis"},
			Playback: []string{"reproduza"},
			Send:     []string{"envie", "enviar"},
		},
		Completion: CompletionConfig{
			Model:         "gpt-3.5-turbo",
			FallbackReply: "Nenhuma resposta recebida.",
			ErrorReply:    "Erro ao buscar resposta.",
		},
		Bus: BusConfig{
			URL:  "ws://localhost:8092/ws",
			Name: "voxchat",
		},
		IPC: IPCConfig{
			Socket: "/tmp/voxchat.sock",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// The result is not validated; callers apply their overrides first and then
// call Validate.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(Levels, cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: %v", cfg.LogLevel, Levels))
	}
	if cfg.Locale == "" {
		errs = append(errs, errors.New("locale must not be empty"))
	}
	if !slices.Contains(Sources, cfg.Capture.Source) {
		errs = append(errs, fmt.Errorf("capture.source %q is invalid; valid values: %v", cfg.Capture.Source, Sources))
	}
	if cfg.Capture.Source == "files" && len(cfg.Capture.Files) == 0 {
		errs = append(errs, errors.New("capture.files must list at least one file when capture.source is files"))
	}
	if (cfg.Capture.Source == "mic" || cfg.Capture.Source == "files") && cfg.Capture.WhisperModel == "" {
		errs = append(errs, errors.New("capture.whisper_model is required for local transcription"))
	}
	if cfg.Capture.RestartDelay < 0 {
		errs = append(errs, errors.New("capture.restart_delay must not be negative"))
	}
	if !slices.Contains(Outputs, cfg.Speech.Output) {
		errs = append(errs, fmt.Errorf("speech.output %q is invalid; valid values: %v", cfg.Speech.Output, Outputs))
	}
	if f := cfg.Speech.Duck.Factor; f <= 0 || f > 1 {
		errs = append(errs, errors.New("speech.duck.factor must be in (0, 1]"))
	}
	if len(cfg.Triggers.Wake) == 0 || len(cfg.Triggers.Playback) == 0 || len(cfg.Triggers.Send) == 0 {
		errs = append(errs, errors.New("triggers.wake, triggers.playback and triggers.send need at least one phrase each"))
	}
	if cfg.Completion.Model == "" {
		errs = append(errs, errors.New("completion.model must not be empty"))
	}
	if cfg.Completion.Timeout < 0 {
		errs = append(errs, errors.New("completion.timeout must not be negative"))
	}
	if cfg.UsesBus() && cfg.Bus.URL == "" {
		errs = append(errs, errors.New("bus.url is required when capture or speech uses the bus"))
	}

	return errors.Join(errs...)
}

func (c *Config) UsesBus() bool {
	return c.Capture.Source == "bus" || c.Speech.Output == "bus"
}
