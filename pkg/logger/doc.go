// Package logger builds the application's structured slog loggers.
//
// Every logger writes JSON to stdout. [Build] optionally adds a rotating
// log file (lumberjack) and Sentry, where error records become issues and
// warnings are kept as searchable logs. All sinks share one
// [LogHandlerDecorator], so [ContextExtractor] values such as the request
// id reach every destination.
//
//	log, closeLog, err := logger.Build(logger.Config{
//		Level: "debug",
//		File:  logger.FileConfig{Path: "logs/app.jsonl", MaxSizeMB: 50},
//		Sentry: logger.SentryConfig{DSN: os.Getenv("SENTRY_DSN")},
//	}, requestIDExtractor)
//	if err != nil {
//		return err
//	}
//	defer closeLog()
//
// Use [NewNope] where a logger is optional.
package logger
