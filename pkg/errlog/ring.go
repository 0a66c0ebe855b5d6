package errlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/dmitrymomot/warden/pkg/logger"
	"github.com/dmitrymomot/warden/pkg/stats"
)

// DefaultCapacity is the number of records a Ring keeps.
const DefaultCapacity = 10

// TimeLayout formats the timestamp of the diagnostic line.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultSkipPattern matches transport noise that is counted and stored but
// not printed. Matching is case-sensitive.
var DefaultSkipPattern = regexp.MustCompile(`epipe|invalid\sdistance|err_ipc_channel_closed`)

// NilMessage is the message stored when Report is given a nil error.
const NilMessage = "<nil>"

// Record is one reported error.
type Record struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Name    string    `json:"name,omitempty"`
	URL     string    `json:"url,omitempty"`
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Ring keeps the most recent errors in insertion order and counts every
// report. All methods are safe for concurrent use.
type Ring struct {
	records  []Record
	counters *stats.Counters
	out      io.Writer
	logger   *slog.Logger
	skip     *regexp.Regexp
	now      func() time.Time
	capacity int
	mu       sync.Mutex
	outMu    sync.Mutex
}

// Option configures a Ring.
type Option func(*Ring)

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(r *Ring) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithOutput sets where diagnostic lines are printed. Default: os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(r *Ring) {
		if w != nil {
			r.out = w
		}
	}
}

// WithLogger forwards each printed report to l at error level.
func WithLogger(l *slog.Logger) Option {
	return func(r *Ring) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSkipPattern replaces DefaultSkipPattern. Nil disables skipping.
func WithSkipPattern(re *regexp.Regexp) Option {
	return func(r *Ring) {
		r.skip = re
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Ring) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Ring that counts into counters. A nil counters gets a
// private counter set.
func New(counters *stats.Counters, opts ...Option) *Ring {
	if counters == nil {
		counters = stats.New()
	}
	r := &Ring{
		counters: counters,
		out:      os.Stderr,
		logger:   logger.NewNope(),
		skip:     DefaultSkipPattern,
		now:      time.Now,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.records = make([]Record, 0, r.capacity)
	return r
}

// Report prints a diagnostic line for err, stores it and increments the
// error counter. name and url are optional. A nil err is recorded with
// NilMessage. Report never panics.
func (r *Ring) Report(err error, name, url string) {
	defer func() { _ = recover() }()

	rec := Record{Time: r.now(), Message: message(err), Name: name, URL: url}

	if r.skip == nil || !r.skip.MatchString(rec.Message) {
		r.print(rec, err)
	}

	r.mu.Lock()
	if len(r.records) >= r.capacity {
		copy(r.records, r.records[1:])
		r.records = r.records[:len(r.records)-1]
	}
	r.records = append(r.records, rec)
	r.counters.IncErrors()
	r.mu.Unlock()
}

// Records returns a copy of the stored records, oldest first.
func (r *Ring) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of stored records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Capacity returns the maximum number of stored records.
func (r *Ring) Capacity() int {
	return r.capacity
}

// Count returns the total number of reports, including evicted ones.
func (r *Ring) Count() int64 {
	return r.counters.Errors()
}

// Format renders the diagnostic line of rec without a trailing newline:
// "time, [name ---> ]message[ (url)]".
func Format(rec Record) string {
	var b strings.Builder
	b.WriteString(rec.Time.Format(TimeLayout))
	b.WriteString(", ")
	if rec.Name != "" {
		b.WriteString(rec.Name)
		b.WriteString(" ---> ")
	}
	b.WriteString(rec.Message)
	if rec.URL != "" {
		b.WriteString(" (")
		b.WriteString(rec.URL)
		b.WriteString(")")
	}
	return b.String()
}

// print never panics, so a faulty writer or logger cannot stop the
// record from being stored and counted.
func (r *Ring) print(rec Record, err error) {
	defer func() { _ = recover() }()

	line := Format(rec)

	var st stackTracer
	stack := ""
	if errors.As(err, &st) {
		stack = fmt.Sprintf("%+v", st.StackTrace())
	}

	r.write(line + stack + "\n")

	attrs := []any{slog.String("error", rec.Message)}
	if rec.Name != "" {
		attrs = append(attrs, slog.String("name", rec.Name))
	}
	if rec.URL != "" {
		attrs = append(attrs, slog.String("url", rec.URL))
	}
	r.logger.Error("error reported", attrs...)
}

// write emits one diagnostic entry in a single Write call.
func (r *Ring) write(s string) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	_, _ = io.WriteString(r.out, s)
}

// message extracts err.Error(), tolerating implementations that panic.
func message(err error) (msg string) {
	if err == nil {
		return NilMessage
	}
	defer func() {
		if p := recover(); p != nil {
			msg = fmt.Sprintf("%T (Error panicked: %v)", err, p)
		}
	}()
	return err.Error()
}
