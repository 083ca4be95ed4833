// Package logging builds the slog loggers shared by the analysis tools and
// relays output from external media tools into them.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Options selects the handler, level and destination of a logger.
type Options struct {
	// Format is "json" or "text". Anything else falls back to JSON.
	Format string

	// Level is "debug", "info", "warn" or "error".
	Level string

	// Verbose forces debug level and adds source locations.
	Verbose bool

	// Tool, when set, is attached to every record as the "tool" attribute.
	Tool string

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New creates a structured logger from opts.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := parseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   opts.Verbose,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(w, hopts)
	} else {
		handler = slog.NewJSONHandler(w, hopts)
	}

	logger := slog.New(handler)
	if opts.Tool != "" {
		logger = logger.With("tool", opts.Tool)
	}
	return logger
}

// NewLogger writes to stderr. It is kept for call sites that only pick a
// format and level.
func NewLogger(format, level string, verbose bool) *slog.Logger {
	return New(Options{Format: format, Level: level, Verbose: verbose})
}

// NewLoggerWithWriter writes to w.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	return New(Options{Format: format, Level: level, Writer: w})
}

// Discard returns a logger that drops every record, used while the TUI owns
// the terminal.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// replaceAttr renders durations as "1.5s" rather than nanoseconds so JSON
// logs stay readable next to the text format.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.String(a.Key, a.Value.Duration().Round(time.Millisecond).String())
	}
	return a
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs logger as the slog default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
