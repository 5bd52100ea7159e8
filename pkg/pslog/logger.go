// Package pslog provides the leveled logger used throughout the library and
// email reporting of captured log sessions.
package pslog

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger writes leveled, structured log lines and keeps a transcript of the
// session, so that a run's output can be mailed out afterwards. It satisfies
// the library's Logger interface.
type Logger struct {
	mu         sync.Mutex
	name       string
	level      Level
	out        io.Writer
	closer     io.Closer
	hasErrors  bool
	transcript strings.Builder
	now        func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithLevel sets the minimum level that is written out. The transcript
// captures everything at or above the configured level.
func WithLevel(level Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

// WithOutput redirects log output, which goes to stderr by default.
func WithOutput(out io.Writer) Option {
	return func(l *Logger) {
		l.out = out
	}
}

// New creates a logger with the given name at LevelInfo, writing to stderr.
func New(name string, opts ...Option) *Logger {
	logger := &Logger{
		name:  name,
		level: LevelInfo,
		out:   os.Stderr,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(logger)
	}

	return logger
}

// NewFileLogger creates a logger that appends to <name>.log in the working
// directory.
func NewFileLogger(name string, opts ...Option) (*Logger, error) {
	file, err := os.OpenFile(name+".log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := New(name, opts...)
	logger.out = file
	logger.closer = file

	return logger, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}

	if err := l.closer.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}

	return nil
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.log(LevelDebug, msg, fields)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.log(LevelWarn, msg, fields)
}

// Error logs at error level and marks the session as having errors.
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.mu.Lock()
	l.hasErrors = true
	l.mu.Unlock()

	l.log(LevelError, msg, fields)
}

// HasErrors reports whether anything was logged at error level during this
// session.
func (l *Logger) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.hasErrors
}

// Transcript returns everything logged so far.
func (l *Logger) Transcript() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.transcript.String()
}

// Reset clears the transcript and the error flag, starting a new session.
func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hasErrors = false
	l.transcript.Reset()
}

func (l *Logger) log(level Level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	line := formatLine(l.now(), level, l.name, msg, fields)

	l.transcript.WriteString(line)

	if l.out != nil {
		_, _ = io.WriteString(l.out, line)
	}
}

func formatLine(at time.Time, level Level, name, msg string, fields map[string]interface{}) string {
	var builder strings.Builder

	builder.WriteString(at.Format("2006-01-02 15:04:05"))
	builder.WriteString(" [")
	builder.WriteString(level.String())
	builder.WriteString("] ")
	builder.WriteString(name)
	builder.WriteString(": ")
	builder.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			builder.WriteString(" ")
			builder.WriteString(key)
			builder.WriteString("=")
			builder.WriteString(fmt.Sprintf("%v", fields[key]))
		}
	}

	builder.WriteString("\n")

	return builder.String()
}
