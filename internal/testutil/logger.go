// Package testutil holds small deterministic helpers shared by package
// tests and the scenario harness.
package testutil

import (
	"bytes"
	"io"
	"log/slog"
)

// Quiet returns a logger that discards everything. Harness runs and tests
// use it so engine logs never bleed into test output or golden files.
func Quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Capture returns a debug-level text logger writing into the returned
// buffer, for tests that assert on log output.
func Capture() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), &buf
}
