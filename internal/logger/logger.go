// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps the standard log package to provide level-based filtering and
// either plain-text or JSON-line output.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

// String returns the upper-case level name
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel converts a level name to a Level. Unknown names give InfoLevel
// and ok=false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	default:
		return InfoLevel, false
	}
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	json   bool
	out    io.Writer
	logger *log.Logger
}

var (
	// Global logger instance
	defaultLogger *Logger
	mu            sync.Mutex
)

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	l, _ := ParseLevel(level)
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = newLogger(l, format, os.Stderr)
}

// SetOutput redirects the default logger, keeping its level and format.
// The logger is initialized at info level with text format if needed.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = newLogger(InfoLevel, "text", w)
		return
	}
	format := "text"
	if defaultLogger.json {
		format = "json"
	}
	defaultLogger = newLogger(defaultLogger.level, format, w)
}

func newLogger(level Level, format string, w io.Writer) *Logger {
	if strings.ToLower(format) == "json" {
		return &Logger{level: level, json: true, out: w}
	}
	return &Logger{
		level:  level,
		out:    w,
		logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
	}
}

type entry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
}

func output(level Level, format string, args ...interface{}) {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil || l.level > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.json {
		line, err := json.Marshal(entry{Time: time.Now().UTC().Format(time.RFC3339Nano), Level: level.String(), Message: msg})
		if err != nil {
			return
		}
		mu.Lock()
		_, _ = l.out.Write(append(line, '\n'))
		mu.Unlock()
		return
	}
	_ = l.logger.Output(3, "["+level.String()+"] "+msg)
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		log.Fatal("[FATAL] " + msg)
	}
	if l.json {
		output(ErrorLevel, "%s", msg)
	} else {
		_ = l.logger.Output(2, "[FATAL] "+msg)
	}
	os.Exit(1)
}
