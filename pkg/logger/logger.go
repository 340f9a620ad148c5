package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the process logger and installs it as the slog default. Format
// "json" writes JSON lines; anything else writes coloured text.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			if source, ok := a.Value.Any().(*slog.Source); ok {
				source.File = filepath.Base(source.File)
			}
		}
		return a
	}

	lvl := ParseLevel(level)
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   lvl == slog.LevelDebug,
			Level:       lvl,
			ReplaceAttr: replaceAttrs,
		})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			AddSource:   lvl == slog.LevelDebug,
			Level:       lvl,
			ReplaceAttr: replaceAttrs,
			TimeFormat:  time.TimeOnly,
			NoColor:     !isTerminal(w),
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled")

	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
