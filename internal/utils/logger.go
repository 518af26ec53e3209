package utils

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log output formats accepted by NewLogger
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

// Logger carries the sync's structured log context. Components derive
// scoped loggers from it with WithComponent, WithItem and WithURL.
type Logger struct {
	zerolog.Logger
}

// LoggerOptions configures NewLogger
type LoggerOptions struct {
	// Level is a zerolog level name; unknown or empty names mean info
	Level string
	// Format is FormatPretty for terminals or FormatJSON for cron logs
	Format string
	// Output defaults to stderr so stdout stays free for reports
	Output io.Writer
	// Verbose forces debug regardless of Level
	Verbose bool
}

// NewLogger builds the run logger
func NewLogger(opts LoggerOptions) *Logger {
	var output io.Writer = os.Stderr
	if opts.Output != nil {
		output = opts.Output
	}
	if opts.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.DateTime}
	}

	level := parseLogLevel(opts.Level)
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	return &Logger{
		Logger: zerolog.New(output).Level(level).With().Timestamp().Logger(),
	}
}

func parseLogLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// WithComponent tags entries with the emitting package (catalog, ledger, ...)
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("component", component).Logger()}
}

// WithItem tags entries with a workshop item id
func (l *Logger) WithItem(id string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("item", id).Logger()}
}

// WithURL tags entries with the catalog page being fetched or rendered
func (l *Logger) WithURL(url string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("url", url).Logger()}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}
