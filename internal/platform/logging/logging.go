package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"wink/internal/platform/config"
)

// New builds the process logger. When LOG_FILE is set, records are written
// to stdout and to a size-rotated file; the returned closer flushes that file.
func New(cfg config.Config) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(cfg.LogFile); path != "" {
		rotating := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}
	return slog.New(newHandler(out, cfg.LogFormat, ParseLevel(cfg.LogLevel))), closer
}

// Setup installs New's logger as the slog default.
func Setup(cfg config.Config) io.Closer {
	logger, closer := New(cfg)
	slog.SetDefault(logger)
	return closer
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
