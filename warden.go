package warden

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrymomot/warden/pkg/audit"
	"github.com/dmitrymomot/warden/pkg/config"
	"github.com/dmitrymomot/warden/pkg/csrf"
	"github.com/dmitrymomot/warden/pkg/errlog"
	"github.com/dmitrymomot/warden/pkg/janitor"
	"github.com/dmitrymomot/warden/pkg/logger"
	"github.com/dmitrymomot/warden/pkg/paths"
	"github.com/dmitrymomot/warden/pkg/stats"
)

// Runtime owns every component of the trust layer and is passed explicitly
// to whatever needs it. Its fields are set once by New.
type Runtime struct {
	Config  *config.Store
	Logger  *slog.Logger
	Paths   *paths.Resolver
	Stats   *stats.Counters
	Errors  *errlog.Ring
	Audit   *audit.Logger
	CSRF    *csrf.Service
	Janitor *janitor.Janitor

	closeLog func() error
}

// Option configures New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	errOut     io.Writer
	extractors []logger.ContextExtractor
	loadOpts   []config.LoadOption
}

// WithLogger uses l instead of building one from the log configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLogExtractors adds context extractors to the logger built from the
// log configuration. Ignored together with WithLogger.
func WithLogExtractors(ex ...logger.ContextExtractor) Option {
	return func(o *options) {
		o.extractors = append(o.extractors, ex...)
	}
}

// WithErrorOutput sets where the error ring prints diagnostic lines.
// Default: os.Stderr.
func WithErrorOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.errOut = w
		}
	}
}

// WithLoadOptions is passed to config.Open by Open.
func WithLoadOptions(opts ...config.LoadOption) Option {
	return func(o *options) {
		o.loadOpts = append(o.loadOpts, opts...)
	}
}

// Open loads the configuration file at path and builds a Runtime from it.
func Open(path string, opts ...Option) (*Runtime, error) {
	o := buildOptions(opts)
	store, err := config.Open(path, o.loadOpts...)
	if err != nil {
		return nil, err
	}
	return New(store, opts...)
}

// New wires the components around store. Close releases the log sinks.
func New(store *config.Store, opts ...Option) (*Runtime, error) {
	if store == nil {
		return nil, ErrNoConfig
	}
	o := buildOptions(opts)
	cfg := store.Get()

	log, closeLog := o.logger, func() error { return nil }
	if log == nil {
		var err error
		log, closeLog, err = logger.Build(cfg.Log, o.extractors...)
		if err != nil {
			return nil, err
		}
	}
	store.SetLogger(log)

	resolver := paths.New(cfg.Paths.Base)
	counters := stats.New()
	ring := errlog.New(counters,
		errlog.WithOutput(o.errOut),
		errlog.WithLogger(log),
	)

	return &Runtime{
		Config: store,
		Logger: log,
		Paths:  resolver,
		Stats:  counters,
		Errors: ring,
		Audit: audit.New(resolver, counters,
			audit.WithLogger(log),
			audit.WithReporter(ring),
		),
		CSRF: csrf.NewService(store,
			csrf.WithCounters(counters),
			csrf.WithLogger(log),
		),
		Janitor: janitor.New(resolver,
			janitor.WithSchedule(cfg.Janitor.Schedule),
			janitor.WithMaxAge(cfg.Janitor.MaxAge),
			janitor.WithReporter(ring),
			janitor.WithLogger(log),
		),
		closeLog: closeLog,
	}, nil
}

// Prepare creates every resource directory. All failures are returned.
func (rt *Runtime) Prepare() error {
	var errs []error
	for _, k := range paths.Kinds() {
		if err := rt.Paths.EnsureKind(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes the log sinks.
func (rt *Runtime) Close() error {
	if rt.closeLog == nil {
		return nil
	}
	return rt.closeLog()
}

func buildOptions(opts []Option) *options {
	o := &options{errOut: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ErrNoConfig is returned by New without a config store.
var ErrNoConfig = errors.New("warden: config store is required")
