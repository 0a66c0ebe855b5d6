package janitor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/warden/pkg/logger"
	"github.com/dmitrymomot/warden/pkg/paths"
)

// Defaults for New.
const (
	DefaultSchedule = "@hourly"
	DefaultMaxAge   = 24 * time.Hour
)

// ReportName labels sweep failures sent to the Reporter.
const ReportName = "janitor"

// Reporter receives sweep failures.
type Reporter interface {
	Report(err error, name, url string)
}

// Result summarises one sweep.
type Result struct {
	Removed int
	Failed  int
}

// Janitor removes stale entries from the tmp directory.
type Janitor struct {
	paths    *paths.Resolver
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time
	schedule string
	maxAge   time.Duration
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithSchedule sets the cron expression (standard five fields or descriptors
// such as @hourly).
func WithSchedule(spec string) Option {
	return func(j *Janitor) {
		if spec != "" {
			j.schedule = spec
		}
	}
}

// WithMaxAge sets how old an entry must be before it is removed.
func WithMaxAge(d time.Duration) Option {
	return func(j *Janitor) {
		if d > 0 {
			j.maxAge = d
		}
	}
}

// WithReporter sends sweep failures to r.
func WithReporter(r Reporter) Option {
	return func(j *Janitor) {
		j.reporter = r
	}
}

// WithLogger sets the logger for sweep results.
func WithLogger(l *slog.Logger) Option {
	return func(j *Janitor) {
		if l != nil {
			j.logger = l
		}
	}
}

// WithClock replaces time.Now when computing entry age.
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// New creates a Janitor for the tmp directory of resolver.
func New(resolver *paths.Resolver, opts ...Option) *Janitor {
	j := &Janitor{
		paths:    resolver,
		logger:   logger.NewNope(),
		now:      time.Now,
		schedule: DefaultSchedule,
		maxAge:   DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Sweep removes every top-level tmp entry last modified more than maxAge
// ago. Each failure is reported; the joined failures are returned.
// A missing tmp directory is not an error.
func (j *Janitor) Sweep(ctx context.Context) (Result, error) {
	var res Result
	dir := j.paths.Tmp()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		j.report(err, dir)
		return res, err
	}

	cutoff := j.now().Add(-j.maxAge)
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			res.Failed++
			errs = append(errs, err)
			j.report(err, filepath.Join(dir, e.Name()))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		if err := j.paths.RemoveAll(path); err != nil {
			res.Failed++
			errs = append(errs, err)
			j.report(err, path)
			continue
		}
		res.Removed++
	}

	if res.Removed > 0 || res.Failed > 0 {
		j.logger.InfoContext(ctx, "tmp sweep finished",
			slog.Int("removed", res.Removed),
			slog.Int("failed", res.Failed),
		)
	}
	return res, errors.Join(errs...)
}

// Run sweeps on the configured schedule until ctx is done, then waits for a
// running sweep to finish.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger)))
	if _, err := c.AddFunc(j.schedule, func() {
		_, _ = j.Sweep(ctx)
	}); err != nil {
		return errors.Join(ErrSchedule, err)
	}

	j.logger.InfoContext(ctx, "janitor started",
		slog.String("schedule", j.schedule),
		slog.Duration("max_age", j.maxAge),
	)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (j *Janitor) report(err error, path string) {
	if j.reporter == nil {
		return
	}
	j.reporter.Report(pkgerrors.WithStack(err), ReportName, path)
}

// ErrSchedule is returned by Run for an unparsable schedule.
var ErrSchedule = errors.New("janitor: invalid schedule")
