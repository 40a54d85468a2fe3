package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a structured logger on stderr.
// If verbose == true, level = Debug, else Info.
func NewLogger(verbose bool) *slog.Logger {
	return NewLoggerTo(os.Stderr, verbose, "json")
}

// NewLoggerTo returns a logger writing to w in "json" or "text" format.
// Credentials and API keys are masked before reaching the handler.
func NewLoggerTo(w io.Writer, verbose bool, format string) *slog.Logger {
	level := new(slog.LevelVar)
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(NewSecureHandler(handler))
}
