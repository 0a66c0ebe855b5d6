package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig enables a rotating JSON log file next to stdout.
// An empty Path disables the file sink.
type FileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Config describes the application logger.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level  string       `yaml:"level"`
	File   FileConfig   `yaml:"file"`
	Sentry SentryConfig `yaml:"sentry"`

	// Output replaces os.Stdout. Not read from configuration files.
	Output io.Writer `yaml:"-"`
}

// New creates a JSON logger on stdout at info level.
func New(extractors ...ContextExtractor) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(NewLogHandlerDecorator(h, extractors...))
}

// NewNope creates a logger that discards everything.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Build creates a logger from cfg. The returned close function flushes
// Sentry and closes the log file; it is safe to call more than once.
// Sentry initialisation failures are logged and otherwise ignored.
func Build(cfg Config, extractors ...ContextExtractor) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewJSONHandler(out, opts)}
	closers := []func() error{}

	if cfg.File.Path != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxAge:     cfg.File.MaxAgeDays,
			MaxBackups: cfg.File.MaxBackups,
			Compress:   cfg.File.Compress,
		}
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
		closers = append(closers, file.Close)
	}

	if cfg.Sentry.DSN != "" {
		sh, err := newSentryHandler(cfg.Sentry)
		if err != nil {
			slog.New(handlers[0]).Error("failed to initialize sentry", slog.String("error", err.Error()))
		} else {
			handlers = append(handlers, sh)
			closers = append(closers, func() error {
				flushSentry(2 * time.Second)
				return nil
			})
		}
	}

	var once sync.Once
	closeFn := func() error {
		var err error
		once.Do(func() {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c())
			}
			err = errors.Join(errs...)
		})
		return err
	}

	return slog.New(NewLogHandlerDecorator(newFanout(handlers...), extractors...)), closeFn, nil
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, errors.Join(ErrInvalidLevel, err)
	}
	return level, nil
}

// ErrInvalidLevel is returned by ParseLevel and Build for unknown level names.
var ErrInvalidLevel = errors.New("logger: invalid level")
