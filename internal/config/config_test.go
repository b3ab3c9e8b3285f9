package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()): %v", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Locale != "pt-BR" || cfg.Completion.Model != "gpt-3.5-turbo" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromReader_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
locale: en-US
capture:
  source: stdin
  restart_delay: 3s
speech:
  output: console
triggers:
  wake: ["hey vox"]
session:
  resume_after_send: true
completion:
  model: gpt-4o-mini
  timeout: 1m
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Locale != "en-US" {
		t.Errorf("locale = %q", cfg.Locale)
	}
	if cfg.Capture.Source != "stdin" || cfg.Capture.RestartDelay != 3*time.Second {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if len(cfg.Triggers.Wake) != 1 || cfg.Triggers.Wake[0] != "hey vox" {
		t.Errorf("wake triggers = %q", cfg.Triggers.Wake)
	}
	// Untouched lists keep their defaults.
	if len(cfg.Triggers.Send) != 2 {
		t.Errorf("send triggers = %q, want defaults", cfg.Triggers.Send)
	}
	if !cfg.Session.ResumeAfterSend {
		t.Error("resume_after_send not applied")
	}
	if cfg.Completion.Model != "gpt-4o-mini" || cfg.Completion.Timeout != time.Minute {
		t.Errorf("completion = %+v", cfg.Completion)
	}
	if cfg.Completion.ErrorReply != "Erro ao buscar resposta." {
		t.Errorf("error reply default lost: %q", cfg.Completion.ErrorReply)
	}
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader("")); err != nil {
		t.Fatalf("empty document should load defaults: %v", err)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader("lokale: pt-BR\n")); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad source", func(c *Config) { c.Capture.Source = "radio" }, "capture.source"},
		{"files without files", func(c *Config) { c.Capture.Source = "files" }, "capture.files"},
		{"no whisper model", func(c *Config) { c.Capture.WhisperModel = "" }, "whisper_model"},
		{"bad output", func(c *Config) { c.Speech.Output = "morse" }, "speech.output"},
		{"no send phrase", func(c *Config) { c.Triggers.Send = nil }, "triggers"},
		{"bus without url", func(c *Config) { c.Speech.Output = "bus"; c.Bus.URL = "" }, "bus.url"},
		{"negative delay", func(c *Config) { c.Capture.RestartDelay = -time.Second }, "restart_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voxchat.yaml")
	if err := os.WriteFile(path, []byte("speech:\n  output: console\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Speech.Output != "console" {
		t.Errorf("output = %q", cfg.Speech.Output)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLoadFromReader_ValidatedAfterOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("capture:\n  source: files\n"))
	if err != nil {
		t.Fatalf("files listed later on the command line must not fail loading: %v", err)
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate should still reject files mode without files")
	}

	cfg.Capture.Files = []string{"question.wav"}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate after override: %v", err)
	}
}
