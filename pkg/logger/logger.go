// Package logger provides structured logging for the nightshift plugin.
// Log output goes to a file only; the hook protocol owns stdout, so
// nothing may ever be printed there. Sink failures are swallowed:
// logging must never break the event flow it observes.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger is the structured key-value logging interface used across packages.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...any)

	// With returns a new logger with additional key-value pairs.
	With(keysAndValues ...any) Logger
}

// Level represents the log level.
type Level int

const (
	// LevelDebug enables all output including per-event tracing.
	LevelDebug Level = iota

	// LevelInfo enables informational and error output.
	LevelInfo

	// LevelError enables error output only.
	LevelError
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	default:
		return "ERROR"
	}
}

// LogFilePermissions is the permission mode for log files (owner only).
const LogFilePermissions = 0o600

// FileLogger writes logfmt-style lines to a file.
type FileLogger struct {
	sink     io.Writer
	baseKVs  []any
	minLevel Level
}

// NewFileLogger opens (or creates) the log file at path for appending.
func NewFileLogger(path string, minLevel Level) (*FileLogger, error) {
	//nolint:gosec // G304: path comes from configuration, not event input
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	return &FileLogger{sink: file, minLevel: minLevel}, nil
}

// NewFileLoggerWithWriter creates a FileLogger backed by a custom writer.
func NewFileLoggerWithWriter(sink io.Writer, minLevel Level) *FileLogger {
	return &FileLogger{sink: sink, minLevel: minLevel}
}

// Debug logs debug-level messages.
func (l *FileLogger) Debug(msg string, keysAndValues ...any) {
	if l.minLevel > LevelDebug {
		return
	}

	l.write(LevelDebug, msg, keysAndValues)
}

// Info logs info-level messages.
func (l *FileLogger) Info(msg string, keysAndValues ...any) {
	if l.minLevel > LevelInfo {
		return
	}

	l.write(LevelInfo, msg, keysAndValues)
}

// Error logs error-level messages.
func (l *FileLogger) Error(msg string, keysAndValues ...any) {
	l.write(LevelError, msg, keysAndValues)
}

// With returns a new logger carrying additional base key-value pairs.
//
//nolint:ireturn // With returns an interface for chaining
func (l *FileLogger) With(keysAndValues ...any) Logger {
	merged := make([]any, 0, len(l.baseKVs)+len(keysAndValues))
	merged = append(merged, l.baseKVs...)
	merged = append(merged, keysAndValues...)

	return &FileLogger{
		sink:     l.sink,
		baseKVs:  merged,
		minLevel: l.minLevel,
	}
}

// write formats and appends one log line. Write errors are discarded.
func (l *FileLogger) write(level Level, msg string, kvs []any) {
	var b strings.Builder

	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(level.String())
	b.WriteString(" ")
	b.WriteString(msg)

	appendKVs(&b, l.baseKVs)
	appendKVs(&b, kvs)
	b.WriteString("\n")

	if l.sink != nil {
		_, _ = io.WriteString(l.sink, b.String())
	}
}

// appendKVs formats pairs as key=value, quoting values that need it.
// A trailing unpaired key is dropped.
func appendKVs(b *strings.Builder, kvs []any) {
	for i := 0; i+1 < len(kvs); i += 2 {
		key := fmt.Sprintf("%v", kvs[i])
		value := fmt.Sprintf("%v", kvs[i+1])

		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")

		if strings.ContainsAny(value, " \t\n\"=") {
			b.WriteString(quote(value))
		} else {
			b.WriteString(value)
		}
	}
}

// quote escapes and quotes a value for logfmt output.
func quote(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")

	return "\"" + s + "\""
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug does nothing.
func (*NoOpLogger) Debug(string, ...any) {}

// Info does nothing.
func (*NoOpLogger) Info(string, ...any) {}

// Error does nothing.
func (*NoOpLogger) Error(string, ...any) {}

// With returns the same NoOpLogger.
//
//nolint:ireturn // With returns an interface for chaining
func (n *NoOpLogger) With(...any) Logger {
	return n
}
