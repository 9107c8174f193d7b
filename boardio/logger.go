package boardio

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// LogLevel controls diagnostic verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
)

// Logger writes levelled diagnostic messages to stderr. Session
// diagnostics are advisory only; callers must not parse them for control
// flow.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	output io.Writer
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = errors and warnings only, 1 = normal, 2 = verbose).
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level, output: os.Stderr}
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// Error always prints. Prefixed with [ERR].
func (l *Logger) Error(format string, args ...any) {
	l.write(LogQuiet, "ERR", format, args...)
}

// Warn always prints. Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...any) {
	l.write(LogQuiet, "WRN", format, args...)
}

// Info prints at normal verbosity and above. Prefixed with [INF].
func (l *Logger) Info(format string, args ...any) {
	l.write(LogNormal, "INF", format, args...)
}

// Verbose prints at verbose level only. Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...any) {
	l.write(LogVerbose, "VRB", format, args...)
}

func (l *Logger) write(min LogLevel, tag, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level < min {
		return
	}
	fmt.Fprintf(l.output, "[%s] %s\n", tag, fmt.Sprintf(format, args...))
}
