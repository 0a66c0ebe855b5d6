package stats

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every exported metric name.
const DefaultNamespace = "warden"

// Counters holds the process-wide monotonic counters.
// The zero value is ready to use. Counters are never reset; only a process
// restart starts them over.
type Counters struct {
	errors       atomic.Int64
	auditOpened  atomic.Int64
	csrfIssued   atomic.Int64
	csrfRejected atomic.Int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Errors       int64 `json:"errors"`
	AuditOpened  int64 `json:"audit_opened"`
	CSRFIssued   int64 `json:"csrf_issued"`
	CSRFRejected int64 `json:"csrf_rejected"`
}

// New returns an empty counter set.
func New() *Counters {
	return &Counters{}
}

// IncErrors records one reported error and returns the new total.
func (c *Counters) IncErrors() int64 { return c.errors.Add(1) }

// IncAuditOpened records one audit write attempt and returns the new total.
func (c *Counters) IncAuditOpened() int64 { return c.auditOpened.Add(1) }

// IncCSRFIssued records one issued token.
func (c *Counters) IncCSRFIssued() int64 { return c.csrfIssued.Add(1) }

// IncCSRFRejected records one rejected token.
func (c *Counters) IncCSRFRejected() int64 { return c.csrfRejected.Add(1) }

// Errors returns the total number of reported errors.
func (c *Counters) Errors() int64 { return c.errors.Load() }

// AuditOpened returns the total number of audit write attempts.
func (c *Counters) AuditOpened() int64 { return c.auditOpened.Load() }

// CSRFIssued returns the total number of issued tokens.
func (c *Counters) CSRFIssued() int64 { return c.csrfIssued.Load() }

// CSRFRejected returns the total number of rejected tokens.
func (c *Counters) CSRFRejected() int64 { return c.csrfRejected.Load() }

// Snapshot reads every counter. Individual loads are atomic; the set as a
// whole is not taken under a single lock.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Errors:       c.Errors(),
		AuditOpened:  c.AuditOpened(),
		CSRFIssued:   c.CSRFIssued(),
		CSRFRejected: c.CSRFRejected(),
	}
}

// Collectors exposes the counters as Prometheus counter functions.
// The metric values are read lazily on every scrape.
func (c *Counters) Collectors(namespace string) []prometheus.Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	counter := func(name, help string, fn func() int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn()) })
	}

	return []prometheus.Collector{
		counter("errors_total", "Errors reported to the error ring.", c.Errors),
		counter("audit_opened_total", "Audit records attempted.", c.AuditOpened),
		counter("csrf_issued_total", "CSRF tokens issued.", c.CSRFIssued),
		counter("csrf_rejected_total", "CSRF tokens rejected.", c.CSRFRejected),
	}
}

// Register adds the counters to a Prometheus registry.
// Collectors that are already registered are skipped, so Register may be
// called again with the same registry.
func (c *Counters) Register(reg prometheus.Registerer, namespace string) error {
	for _, col := range c.Collectors(namespace) {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
