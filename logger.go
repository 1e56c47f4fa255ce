package gpuactor

import (
	"log/slog"

	"github.com/gogpu/gpuactor/internal/logging"
)

// SetLogger configures the logger for gpuactor and all its sub-packages.
// By default, gpuactor produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by gpuactor:
//   - [slog.LevelDebug]: per-request dispatch
//   - [slog.LevelInfo]: lifecycle events (actor started, adapter selected, exit)
//   - [slog.LevelWarn]: dropped requests, undeliverable replies and notifications
//   - [slog.LevelError]: launch failures
//
// Example:
//
//	gpuactor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by gpuactor.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.L()
}
