package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"netbloom/internal/config"
)

// Log file rotation defaults
const (
	DefaultLogMaxSizeMB  = 5
	DefaultLogMaxBackups = 4
	DefaultLogMaxAgeDays = 30
)

// setupLogger installs the default logger: tint on stderr plus an optional
// rotated text log at debug level. The returned closer flushes the file.
func setupLogger(opts *options, lc config.LogConfig) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	} else if opts.brief {
		level = slog.LevelWarn
	}

	logW := os.Stderr
	handlers := []slog.Handler{
		tint.NewHandler(logW, &tint.Options{
			Level:      level,
			TimeFormat: time.StampMilli,
			NoColor:    !isatty.IsTerminal(logW.Fd()),
		}),
	}

	var closer io.Closer = nopCloser{}
	if lc.File != "" {
		logFile := &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    orDefault(lc.MaxSizeMB, DefaultLogMaxSizeMB),
			MaxBackups: orDefault(lc.MaxBackups, DefaultLogMaxBackups),
			MaxAge:     orDefault(lc.MaxAgeDays, DefaultLogMaxAgeDays),
			Compress:   true,
		}
		handlers = append(handlers, slog.NewTextHandler(logFile, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		closer = logFile
	}

	logger := slog.New(slogmulti.Fanout(handlers...))
	slog.SetDefault(logger)
	return logger, closer
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
