package csrf

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Transport names for the token.
const (
	HeaderName = "X-CSRF-Token"
	QueryParam = "csrf"
)

type statusKey struct{}

// TokenFromRequest reads the token from the X-CSRF-Token header, falling
// back to the csrf query parameter.
func TokenFromRequest(r *http.Request) Token {
	if v := r.Header.Get(HeaderName); v != "" {
		return Token(v)
	}
	return Token(r.URL.Query().Get(QueryParam))
}

// ClientIP returns the client address of r. With trustProxy set, the first
// X-Forwarded-For entry or X-Real-IP wins over the socket address.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FingerprintFromRequest derives the fingerprint of the requester.
func FingerprintFromRequest(r *http.Request, trustProxy bool) Fingerprint {
	return NewFingerprint(ClientIP(r, trustProxy), r.UserAgent())
}

// StatusFromContext returns the status recorded by Middleware.
// ok is false when the request was not checked (safe methods).
func StatusFromContext(ctx context.Context) (Status, bool) {
	s, ok := ctx.Value(statusKey{}).(Status)
	return s, ok
}

type middlewareConfig struct {
	onFailure  http.Handler
	trustProxy bool
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithTrustProxy makes the middleware take the client IP from proxy headers.
func WithTrustProxy(trust bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.trustProxy = trust
	}
}

// WithFailureHandler replaces the default 403 response.
func WithFailureHandler(h http.Handler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.onFailure = h
		}
	}
}

// Middleware rejects state-changing requests that do not carry a valid
// token. GET, HEAD, OPTIONS and TRACE pass unchecked. When the service is
// disabled every request passes and the status is StatusDisabled.
// The failure response never says why the token was refused.
func Middleware(svc *Service, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		onFailure: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		}),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}

			fp := FingerprintFromRequest(r, cfg.trustProxy)
			status := svc.Verify(r.Context(), fp, TokenFromRequest(r))
			if !status.OK() {
				cfg.onFailure.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), statusKey{}, status)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
