package csrf

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/warden/pkg/logger"
	"github.com/dmitrymomot/warden/pkg/stats"
)

// SecretSource supplies the current secret and token lifetime.
// It is consulted on every call so configuration can change at runtime.
type SecretSource interface {
	CSRF() (secret string, ttl time.Duration)
}

// StaticSecret is a SecretSource with fixed values.
type StaticSecret struct {
	Secret string
	TTL    time.Duration
}

// CSRF implements SecretSource.
func (s StaticSecret) CSRF() (string, time.Duration) { return s.Secret, s.TTL }

// Service issues and verifies tokens using a SecretSource.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	src      SecretSource
	now      func() time.Time
	counters *stats.Counters
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCounters records issued and rejected tokens.
func WithCounters(c *stats.Counters) Option {
	return func(s *Service) {
		s.counters = c
	}
}

// WithLogger logs rejection reasons at debug level.
// Reasons are never returned to callers.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service backed by src.
func NewService(src SecretSource, opts ...Option) *Service {
	s := &Service{
		src:    src,
		now:    time.Now,
		logger: logger.NewNope(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a secret is currently configured.
func (s *Service) Enabled() bool {
	secret, _ := s.src.CSRF()
	return secret != ""
}

// Issue creates a token for fp. Returns ErrDisabled without a secret.
func (s *Service) Issue(fp Fingerprint) (Token, error) {
	secret, ttl := s.src.CSRF()
	tok, err := Issue(fp, secret, ttl, s.now())
	if err != nil {
		return "", err
	}
	if s.counters != nil {
		s.counters.IncCSRFIssued()
	}
	return tok, nil
}

// Verify checks token against fp.
func (s *Service) Verify(ctx context.Context, fp Fingerprint, token Token) Status {
	secret, _ := s.src.CSRF()
	if secret == "" {
		return StatusDisabled
	}

	if err := check(fp, secret, string(token), s.now()); err != nil {
		if s.counters != nil {
			s.counters.IncCSRFRejected()
		}
		s.logger.DebugContext(ctx, "csrf token rejected",
			slog.String("ip", fp.IP),
			slog.String("reason", err.Error()),
		)
		return StatusInvalid
	}
	return StatusValid
}

// Validate is Verify reduced to a boolean. A disabled service always passes.
func (s *Service) Validate(ctx context.Context, fp Fingerprint, token Token) bool {
	return s.Verify(ctx, fp, token).OK()
}
