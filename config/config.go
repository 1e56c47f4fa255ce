// Package config holds the daemon configuration.
//
// The configuration is a YAML file. Missing keys keep their defaults, and
// unknown keys are rejected so that typos do not silently fall back to a
// default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for an unusable configuration.
var ErrInvalid = errors.New("config: invalid configuration")

// Backend names accepted in Config.Backends.
const (
	BackendSoftware = "software"
	BackendNoop     = "noop"
	BackendVulkan   = "vulkan"
)

// Config configures the command actor daemon.
type Config struct {
	// Enabled gates actor creation. A disabled configuration makes Launch
	// return without starting anything.
	Enabled bool `yaml:"enabled"`

	// Name labels the actor in logs and metrics.
	Name string `yaml:"name,omitempty"`

	// Backends lists the backends to register, in order.
	Backends []string `yaml:"backends"`

	InboxDepth  int `yaml:"inbox_depth"`
	NotifyDepth int `yaml:"notify_depth"`

	// SubmitTimeout bounds how long native backends wait for a queue.
	SubmitTimeout time.Duration `yaml:"submit_timeout,omitempty"`

	Socket      string `yaml:"socket"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"` // empty disables /metrics
	LogLevel    string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Enabled:       true,
		Name:          "gpud",
		Backends:      []string{BackendSoftware},
		InboxDepth:    256,
		NotifyDepth:   256,
		SubmitTimeout: 5 * time.Second,
		Socket:        "/tmp/gpud.sock",
		LogLevel:      "info",
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document decodes to io.EOF and keeps the defaults.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Validate checks that every field is usable.
func (c Config) Validate() error {
	if c.InboxDepth <= 0 {
		return fmt.Errorf("%w: inbox_depth must be positive, got %d", ErrInvalid, c.InboxDepth)
	}
	if c.NotifyDepth <= 0 {
		return fmt.Errorf("%w: notify_depth must be positive, got %d", ErrInvalid, c.NotifyDepth)
	}
	if c.SubmitTimeout < 0 {
		return fmt.Errorf("%w: negative submit_timeout", ErrInvalid)
	}
	if c.Enabled && len(c.Backends) == 0 {
		return fmt.Errorf("%w: no backends", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		switch b {
		case BackendSoftware, BackendNoop, BackendVulkan:
		default:
			return fmt.Errorf("%w: unknown backend %q", ErrInvalid, b)
		}
		if seen[b] {
			return fmt.Errorf("%w: backend %q listed twice", ErrInvalid, b)
		}
		seen[b] = true
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns LogLevel as a slog.Level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}
