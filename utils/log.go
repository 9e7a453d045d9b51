package utils

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Extra levels on top of slog's four.
const (
	LevelTrace    = slog.Level(-8)
	LevelCritical = slog.Level(12)
)

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l >= LevelCritical:
		return "CRITICAL"
	default:
		return l.String()
	}
}

// NewLogger builds a JSON logger writing to filePath and, optionally, stdout.
// An empty filePath logs to stdout only. The returned closer releases the file.
func NewLogger(filePath string, level slog.Level, alsoStdout bool) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "could not open log file")
		}
		writers = append(writers, f)
		closer = f
	}
	if alsoStdout || filePath == "" {
		writers = append(writers, os.Stdout)
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if l, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(l))
				}
			}
			return a
		},
	}
	return slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts)), closer, nil
}

// Trace logs below debug; used for per-frame RX/TX dumps.
func Trace(log *slog.Logger, msg string, args ...any) {
	log.Log(context.Background(), LevelTrace, msg, args...)
}

// Critical logs above error; used for failures that stop the runner.
func Critical(log *slog.Logger, msg string, args ...any) {
	log.Log(context.Background(), LevelCritical, msg, args...)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
