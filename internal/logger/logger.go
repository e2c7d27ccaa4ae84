package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process-wide logger.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

func Setup(level string) {
	SetupWithOptions(Options{Level: level})
}

// SetupWithOptions installs a tint handler as the default slog logger. When File is set,
// records are also written uncoloured to a rotating log file; the returned closer releases it.
func SetupWithOptions(opts Options) io.Closer {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      ParseLevel(opts.Level),
		TimeFormat: time.TimeOnly,
	})

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		handler = tint.NewHandler(io.MultiWriter(os.Stderr, rotating), &tint.Options{
			Level:      ParseLevel(opts.Level),
			TimeFormat: time.DateTime,
			NoColor:    true,
		})
		closer = rotating
	}

	slog.SetDefault(slog.New(handler))
	return closer
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
