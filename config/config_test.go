package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
enabled: true
backends: [noop, software]
inbox_depth: 32
submit_timeout: 250ms
log_level: debug
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Backends) != 2 || cfg.Backends[0] != BackendNoop {
		t.Errorf("Backends = %v", cfg.Backends)
	}
	if cfg.InboxDepth != 32 {
		t.Errorf("InboxDepth = %d, want 32", cfg.InboxDepth)
	}
	if cfg.NotifyDepth != Default().NotifyDepth {
		t.Errorf("NotifyDepth = %d, want default", cfg.NotifyDepth)
	}
	if cfg.SubmitTimeout != 250*time.Millisecond {
		t.Errorf("SubmitTimeout = %v", cfg.SubmitTimeout)
	}
	if l, _ := cfg.Level(); l != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", l)
	}
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Socket != Default().Socket {
		t.Errorf("Socket = %q", cfg.Socket)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "inbox_dept: 3"},
		{"zero depth", "inbox_depth: 0"},
		{"unknown backend", "backends: [metal]"},
		{"duplicate backend", "backends: [software, software]"},
		{"no backends", "backends: []"},
		{"bad level", "log_level: loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Errorf("Parse(%q) succeeded", tt.yaml)
			}
		})
	}
}

func TestDisabledNeedsNoBackends(t *testing.T) {
	if _, err := Parse([]byte("enabled: false\nbackends: []")); err != nil {
		t.Errorf("Parse(disabled) error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpud.yaml")
	if err := os.WriteFile(path, []byte("socket: /run/test.sock\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Socket != "/run/test.sock" {
		t.Errorf("Socket = %q", cfg.Socket)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want ErrNotExist", err)
	}
}
