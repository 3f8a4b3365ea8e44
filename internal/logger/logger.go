// Package logger builds the slog loggers used by the server and the CLI.
package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// NewWithWriter builds a logger at a fixed level.
func NewWithWriter(w io.Writer, level string, format string) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(ParseLevel(level))
	return NewLeveled(w, lvl, format)
}

// NewLeveled builds a logger whose level follows lvl, so a config reload can
// change verbosity without replacing the logger. Format is "json" or "text".
func NewLeveled(w io.Writer, lvl *slog.LevelVar, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: durationMillis}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// durationMillis renders durations as fractional milliseconds so request
// and compute timings aggregate as numbers.
func durationMillis(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.Float64(a.Key+"_ms", float64(a.Value.Duration())/float64(time.Millisecond))
	}
	return a
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel accepts slog level names, including offsets such as
// "debug+2", and "warning". Anything else is info.
func ParseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
