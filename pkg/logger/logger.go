package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Loggers struct {
	InfoLogger  *slog.Logger
	ErrorLogger *slog.Logger
}

// SetupLogger builds JSON loggers: informational output goes to stdout,
// warnings and errors to stderr.
func SetupLogger(level string) (*Loggers, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return newLoggers(os.Stdout, os.Stderr, lvl), nil
}

// NewDiscardLoggers returns loggers that drop everything. Used by tests.
func NewDiscardLoggers() *Loggers {
	return newLoggers(io.Discard, io.Discard, slog.LevelError)
}

func newLoggers(infoOut, errorOut io.Writer, lvl slog.Level) *Loggers {
	errLevel := lvl
	if errLevel < slog.LevelWarn {
		errLevel = slog.LevelWarn
	}

	return &Loggers{
		InfoLogger:  slog.New(slog.NewJSONHandler(infoOut, &slog.HandlerOptions{Level: lvl})),
		ErrorLogger: slog.New(slog.NewJSONHandler(errorOut, &slog.HandlerOptions{Level: errLevel})),
	}
}
