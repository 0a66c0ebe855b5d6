package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/warden/pkg/logger"
	"github.com/dmitrymomot/warden/pkg/paths"
	"github.com/dmitrymomot/warden/pkg/stats"
)

const (
	// DefaultName is used when a record is written without a log name.
	DefaultName = "audit"

	// Extension is appended to the log name to form the file name.
	Extension = ".log"

	// FilePerm is the mode of newly created audit files.
	FilePerm fs.FileMode = 0o644
)

// Reserved record fields. Payload values under these keys are replaced.
const (
	FieldCreatedAt = "createdAt"
	FieldName      = "name"
)

// DefaultRedactedKeys are dropped from every payload before it is written.
var DefaultRedactedKeys = []string{"password", "token", "accesstoken", "access_token", "pin"}

// Reporter receives append failures.
type Reporter interface {
	Report(err error, name, url string)
}

// Logger appends JSON records to <logs>/<name>.log.
// It is safe for concurrent use.
type Logger struct {
	paths    *paths.Resolver
	counters *stats.Counters
	logger   *slog.Logger
	reporter Reporter
	now      func() time.Time
	redact   map[string]struct{}
	locks    sync.Map
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the logger used for failed appends.
func WithLogger(l *slog.Logger) Option {
	return func(a *Logger) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithReporter forwards failed appends made through Record to r.
func WithReporter(r Reporter) Option {
	return func(a *Logger) {
		a.reporter = r
	}
}

// WithClock replaces time.Now for the createdAt field.
func WithClock(now func() time.Time) Option {
	return func(a *Logger) {
		if now != nil {
			a.now = now
		}
	}
}

// WithRedactedKeys replaces DefaultRedactedKeys. Keys match case-insensitively.
func WithRedactedKeys(keys ...string) Option {
	return func(a *Logger) {
		a.redact = keySet(keys)
	}
}

// New creates a Logger writing under the logs directory of resolver.
// A nil counters gets a private counter set.
func New(resolver *paths.Resolver, counters *stats.Counters, opts ...Option) *Logger {
	if counters == nil {
		counters = stats.New()
	}
	a := &Logger{
		paths:    resolver,
		counters: counters,
		logger:   logger.NewNope(),
		now:      time.Now,
		redact:   keySet(DefaultRedactedKeys),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Path returns the file a log name is written to.
func (a *Logger) Path(name string) (string, error) {
	name, err := normalizeName(name)
	if err != nil {
		return "", err
	}
	return a.paths.Logs(name + Extension), nil
}

// Record appends payload to the log name and never fails the caller:
// errors are logged and passed to the reporter.
func (a *Logger) Record(ctx context.Context, name string, payload map[string]any) {
	if err := a.Append(ctx, name, payload); err != nil {
		a.logger.ErrorContext(ctx, "audit append failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		if a.reporter != nil {
			a.reporter.Report(err, "audit", name)
		}
	}
}

// Append writes one record and syncs the file before returning.
// The record is payload without redacted keys, plus createdAt and name.
// Every call counts as an opened audit, including failed ones.
// Failures are returned as *WriteError.
func (a *Logger) Append(ctx context.Context, name string, payload map[string]any) error {
	a.counters.IncAuditOpened()

	if err := ctx.Err(); err != nil {
		return &WriteError{Name: name, Err: err}
	}

	name, err := normalizeName(name)
	if err != nil {
		return &WriteError{Name: name, Err: err}
	}
	path := a.paths.Logs(name + Extension)

	line, err := json.Marshal(a.build(name, payload))
	if err != nil {
		return &WriteError{Name: name, Path: path, Err: errors.Join(ErrMarshal, err)}
	}
	line = append(line, '\n')

	if err := a.paths.EnsureKind(paths.Logs); err != nil {
		return &WriteError{Name: name, Path: path, Err: err}
	}

	mu := a.lock(path)
	mu.Lock()
	defer mu.Unlock()

	if err := appendLine(path, line); err != nil {
		return &WriteError{Name: name, Path: path, Err: errors.Join(ErrWrite, err)}
	}
	return nil
}

// Tail returns the last n records of the log name, oldest first.
// n <= 0 returns every record. A missing log yields no records.
func (a *Logger) Tail(name string, n int) ([]map[string]any, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	path := a.paths.Logs(name + Extension)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		lines = append(lines, sc.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (a *Logger) build(name string, payload map[string]any) map[string]any {
	rec := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		if _, drop := a.redact[strings.ToLower(k)]; drop {
			continue
		}
		rec[k] = v
	}
	rec[FieldCreatedAt] = a.now().UTC().Format(time.RFC3339Nano)
	rec[FieldName] = name
	return rec
}

func (a *Logger) lock(path string) *sync.Mutex {
	mu, _ := a.locks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// appendLine issues a single write so concurrent appenders never
// interleave partial lines.
func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FilePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName, nil
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") || strings.ContainsRune(name, 0) {
		return name, ErrInvalidName
	}
	return name, nil
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return set
}
