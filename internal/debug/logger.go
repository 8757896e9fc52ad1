// Package debug holds the process-wide log/slog logger used by the query
// pipeline, the client and the CLI.
package debug

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format selects the slog handler used for output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	logger  *slog.Logger
	enabled bool
	mu      sync.RWMutex
)

func init() {
	Init(false)
}

// Init switches debug logging on or off, writing text records to stderr.
// When disabled everything below error+1 is dropped.
func Init(enable bool) {
	InitWithFormat(enable, FormatText, os.Stderr)
}

// InitWithFormat is Init with an explicit handler format and destination.
func InitWithFormat(enable bool, format Format, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelError + 1
	if enable {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch Format(strings.ToLower(string(format))) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	defer mu.Unlock()
	enabled = enable
	logger = slog.New(handler)
}

// SetLogger replaces the logger with one owned by the embedding application.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	logger = l
	enabled = true
}

// Enabled reports whether debug output is on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
