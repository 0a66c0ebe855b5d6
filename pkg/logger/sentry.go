package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	// MinLevel selects what is stored as Sentry logs. Errors always become issues.
	MinLevel slog.Level `yaml:"-"`
}

// NewWithSentry creates a logger that writes to stdout and Sentry.
// Without a DSN it only writes to stdout.
func NewWithSentry(cfg SentryConfig, extractors ...ContextExtractor) *slog.Logger {
	log, _, err := Build(Config{Sentry: cfg}, extractors...)
	if err != nil {
		return New(extractors...)
	}
	return log
}

func newSentryHandler(cfg SentryConfig) (slog.Handler, error) {
	env := cfg.Environment
	if env == "" {
		env = "production"
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: env,
		EnableLogs:  true,
	}); err != nil {
		return nil, err
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.MinLevel >= slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	return sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background()), nil
}

func flushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}
