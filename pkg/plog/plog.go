// Package plog is the process-wide logger. Every record goes to stderr so that
// stdout stays reserved for the single machine-consumable line the bootstrap
// prints when it is done.
package plog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/term"
)

// Log levels. Notice sits between Debug and Info and is used for the
// per-command "Running" lines, which are noisy on a full install.
const (
	LevelDebug  = slog.LevelDebug
	LevelNotice = slog.Level(-2)
	LevelInfo   = slog.LevelInfo
	LevelWarn   = slog.LevelWarn
	LevelError  = slog.LevelError
)

var (
	level         = new(slog.LevelVar)
	quietMode     atomic.Bool // Use an atomic bool for safe concurrent reads.
	defaultLogger atomic.Pointer[slog.Logger]
)

func init() {
	level.Set(LevelInfo)
	defaultLogger.Store(slog.New(newHandler(os.Stderr)))
}

// newHandler picks a text handler for terminals and in-memory writers, and a
// JSON handler when stderr is piped or redirected (CI, wrapper scripts).
func newHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelName,
	}
	if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// replaceLevelName renders the custom Notice level as NOTICE instead of "DEBUG+2".
func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelNotice {
		a.Value = slog.StringValue("NOTICE")
	}
	return a
}

// SetOutput allows redirecting the logger's output, primarily for testing.
func SetOutput(w io.Writer) {
	// When redirecting output for tests, ensure quiet mode is off
	// so that all levels are written to the provided writer.
	quietMode.Store(false)
	defaultLogger.Store(slog.New(newHandler(w)))
}

// SetLevel sets the minimum level that is written.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// LevelFromString maps a user supplied level name to a slog.Level.
// Unknown names fall back to Info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "notice":
		return LevelNotice
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// IsValidLevel reports whether s names one of the supported levels.
func IsValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "notice", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// SetQuiet enables or disables quiet mode for the global logger.
// In quiet mode, INFO and NOTICE level logs are suppressed.
func SetQuiet(quiet bool) {
	quietMode.Store(quiet)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	log(LevelDebug, msg, args...)
}

// Notice logs a message that is more verbose than Info.
func Notice(msg string, args ...any) {
	if quietMode.Load() {
		return
	}
	log(LevelNotice, msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	if quietMode.Load() {
		return
	}
	log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	log(LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	log(LevelError, msg, args...)
}

func log(l slog.Level, msg string, args ...any) {
	defaultLogger.Load().Log(context.Background(), l, msg, args...)
}
