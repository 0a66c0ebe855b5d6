package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/warden"
	"github.com/dmitrymomot/warden/pkg/csrf"
	"github.com/dmitrymomot/warden/pkg/stats"
)

// Route paths.
const (
	PathToken     = "/csrf"
	PathAudit     = "/audit/{name}"
	PathErrors    = "/debug/errors"
	PathRoute     = "/debug/route"
	PathMetrics   = "/metrics"
	PathLiveness  = "/health/live"
	PathReadiness = "/health/ready"
)

// Option configures the handler built by New.
type Option func(*options)

type options struct {
	checks   map[string]CheckFunc
	registry *prometheus.Registry
}

// WithReadinessCheck adds a named readiness check to the defaults.
func WithReadinessCheck(name string, fn CheckFunc) Option {
	return func(o *options) {
		if name != "" && fn != nil {
			o.checks[name] = fn
		}
	}
}

// WithRegistry exports metrics from reg instead of a private registry.
// The runtime counters are registered on it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// New builds the HTTP handler exposing the runtime.
func New(rt *warden.Runtime, opts ...Option) (http.Handler, error) {
	o := &options{checks: defaultChecks(rt)}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if err := rt.Stats.Register(o.registry, stats.DefaultNamespace); err != nil {
		return nil, err
	}

	sc := rt.Config.Get().Server
	h := &handlers{rt: rt, trustProxy: sc.TrustProxy}

	r := chi.NewRouter()
	r.Use(RequestID, Recover(rt.Errors))
	if len(sc.CORSOrigins) > 0 {
		r.Use(corsHandler(sc.CORSOrigins))
	}

	r.Get(PathLiveness, livenessHandler)
	r.Get(PathReadiness, readinessHandler(o.checks, rt.Logger))
	r.Method(http.MethodGet, PathMetrics, promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{}))

	if sc.Debug {
		r.Get(PathErrors, h.listErrors)
		r.Get(PathRoute, h.resolveRoute)
	}

	r.Group(func(r chi.Router) {
		if sc.RateLimitRPM > 0 {
			r.Use(newRateLimiter(sc.RateLimitRPM, sc.TrustProxy).Handler)
		}
		r.Get(PathToken, h.issueToken)
		r.With(csrf.Middleware(rt.CSRF, csrf.WithTrustProxy(sc.TrustProxy))).Post(PathAudit, h.recordAudit)
	})

	return r, nil
}
