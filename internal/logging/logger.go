// Package logging provides leveled logging for the kernel core and the
// commands built on top of it.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger wraps stdlib log with level support, an optional JSON output mode,
// and a small set of fields carried forward by With* calls.
type Logger struct {
	logger  *log.Logger
	level   LogLevel
	format  string
	noColor bool
	sync    bool
	fields  []fieldKV
	mu      *sync.Mutex
}

type fieldKV struct {
	key string
	val any
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
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

// Config holds logging configuration
type Config struct {
	Level  LogLevel
	Output io.Writer
	// Format is "text" (default) or "json".
	Format string
	// NoColor disables ANSI level coloring in text mode.
	NoColor bool
	// Sync, if true, flushes every line through the shared mutex instead of
	// relying on log.Logger's own internal locking. Tests that read the
	// output buffer immediately after logging want this set.
	Sync bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
		Format: "text",
	}
}

// NewLogger creates a new logger
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	format := config.Format
	if format == "" {
		format = "text"
	}
	return &Logger{
		logger:  log.New(output, "", log.LstdFlags),
		level:   config.Level,
		format:  format,
		noColor: config.NoColor,
		sync:    config.Sync,
		mu:      &sync.Mutex{},
	}
}

// Default returns the default logger, creating it if necessary
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// WithTask returns a child logger that stamps every line with the given
// task id.
func (l *Logger) WithTask(tid int32) *Logger {
	return l.with("tid", tid)
}

// WithIrq returns a child logger that stamps every line with the given IRQ
// line.
func (l *Logger) WithIrq(irq int) *Logger {
	return l.with("irq", irq)
}

// WithError returns a child logger that carries err as a field, rendered
// whenever a line is logged through it.
func (l *Logger) WithError(err error) *Logger {
	return l.with("error", err)
}

func (l *Logger) with(key string, val any) *Logger {
	fields := make([]fieldKV, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	fields = append(fields, fieldKV{key, val})
	return &Logger{
		logger:  l.logger,
		level:   l.level,
		format:  l.format,
		noColor: l.noColor,
		sync:    l.sync,
		fields:  fields,
		mu:      l.mu,
	}
}

// formatArgs converts key-value pairs to a string
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

var levelColor = map[LogLevel]string{
	LevelDebug: "\x1b[36m",
	LevelInfo:  "\x1b[32m",
	LevelWarn:  "\x1b[33m",
	LevelError: "\x1b[31m",
}

const colorReset = "\x1b[0m"

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.level {
		return
	}

	allFields := make([]any, 0, len(l.fields)*2+len(args))
	for _, f := range l.fields {
		allFields = append(allFields, f.key, f.val)
	}
	allFields = append(allFields, args...)

	if l.sync {
		l.mu.Lock()
		defer l.mu.Unlock()
	}

	if l.format == "json" {
		l.writeJSON(level, msg, allFields)
		return
	}
	l.writeText(level, msg, allFields)
}

func (l *Logger) writeText(level LogLevel, msg string, fields []any) {
	prefix := "[" + level.String() + "]"
	if !l.noColor {
		if c, ok := levelColor[level]; ok {
			prefix = c + prefix + colorReset
		}
	}
	l.logger.Printf("%s %s%s", prefix, msg, formatArgs(fields))
}

func (l *Logger) writeJSON(level LogLevel, msg string, fields []any) {
	rec := map[string]any{
		"level": level.String(),
		"msg":   msg,
		"time":  time.Now().Format(time.RFC3339Nano),
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		rec[key] = fmt.Sprintf("%v", fields[i+1])
	}
	b, err := json.Marshal(rec)
	if err != nil {
		l.logger.Printf("[%s] %s%s", level.String(), msg, formatArgs(fields))
		return
	}
	l.logger.Print(string(b))
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// Printf-style logging
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, fmt.Sprintf(format, args...)) }

// Printf for compatibility
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
