// Package stats holds the process-wide counters of the runtime: reported
// errors, audit writes, and CSRF token outcomes.
//
// Counters are lock-free atomics and only ever grow. They can be exported to
// Prometheus with [Counters.Register]; values are read on each scrape.
package stats
