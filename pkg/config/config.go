package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/warden/pkg/logger"
)

// Config is the complete runtime configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Paths   PathsConfig   `yaml:"paths"`
	CSRF    CSRFConfig    `yaml:"csrf"`
	Log     logger.Config `yaml:"log"`
	Janitor JanitorConfig `yaml:"janitor"`
}

// AppConfig names the application and its environment.
type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

// ServerConfig configures the HTTP listener and its middleware.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy"`
	// RateLimitRPM caps token and audit requests per client IP and minute.
	// Zero disables the limit.
	RateLimitRPM int `yaml:"rate_limit_rpm"`
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string `yaml:"cors_origins"`
	// Debug mounts the unauthenticated /debug endpoints.
	Debug bool `yaml:"debug"`
}

// PathsConfig sets the base directory every resolved path lives under.
type PathsConfig struct {
	Base string `yaml:"base"`
}

// CSRFConfig holds the token secret. An empty secret disables CSRF checks.
type CSRFConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// JanitorConfig schedules the sweep of the tmp directory.
type JanitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "warden", Env: "development"},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPM:    120,
		},
		Paths: PathsConfig{Base: "."},
		CSRF:  CSRFConfig{TTL: 30 * time.Minute},
		Log:   logger.Config{Level: "info"},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: "@hourly",
			MaxAge:   24 * time.Hour,
		},
	}
}

// Clone returns a copy of c that shares no slices with it.
func (c *Config) Clone() Config {
	out := *c
	out.Server.CORSOrigins = slices.Clone(c.Server.CORSOrigins)
	return out
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr is empty", ErrInvalid))
	}
	if c.Server.RateLimitRPM < 0 {
		errs = append(errs, fmt.Errorf("%w: server.rate_limit_rpm is negative", ErrInvalid))
	}
	if strings.TrimSpace(c.Paths.Base) == "" {
		errs = append(errs, fmt.Errorf("%w: paths.base is empty", ErrInvalid))
	}
	if c.CSRF.TTL < 0 {
		errs = append(errs, fmt.Errorf("%w: csrf.ttl is negative", ErrInvalid))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level: %w", ErrInvalid, err))
	}
	if c.Janitor.Enabled {
		if _, err := cron.ParseStandard(c.Janitor.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("%w: janitor.schedule: %w", ErrInvalid, err))
		}
		if c.Janitor.MaxAge <= 0 {
			errs = append(errs, fmt.Errorf("%w: janitor.max_age must be positive", ErrInvalid))
		}
	}
	return errors.Join(errs...)
}

type loader struct {
	lookup   func(string) (string, bool)
	envFiles []string
}

// LoadOption configures Load.
type LoadOption func(*loader)

// WithEnvFiles reads dotenv files as a fallback for variables that are not
// set in the process environment. Missing files are skipped.
func WithEnvFiles(files ...string) LoadOption {
	return func(l *loader) {
		l.envFiles = append(l.envFiles, files...)
	}
}

// WithLookup replaces os.LookupEnv.
func WithLookup(fn func(string) (string, bool)) LoadOption {
	return func(l *loader) {
		if fn != nil {
			l.lookup = fn
		}
	}
}

// Load builds a Config from defaults, the YAML file at path and environment
// overrides, in that order. An empty path or a missing file leaves the
// defaults in place.
func Load(path string, opts ...LoadOption) (*Config, error) {
	l := &loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, errors.Join(ErrRead, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Join(ErrParse, err)
			}
		}
	}

	lookup, err := l.resolveLookup()
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *loader) resolveLookup() (func(string) (string, bool), error) {
	files := make([]string, 0, len(l.envFiles))
	for _, f := range l.envFiles {
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return l.lookup, nil
	}

	dotenv, err := godotenv.Read(files...)
	if err != nil {
		return nil, errors.Join(ErrRead, err)
	}
	return func(key string) (string, bool) {
		if v, ok := l.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// Environment variables recognised by Load.
const (
	EnvAddr           = "WARDEN_ADDR"
	EnvTrustProxy     = "WARDEN_TRUST_PROXY"
	EnvRateLimit      = "WARDEN_RATE_LIMIT_RPM"
	EnvCORSOrigins    = "WARDEN_CORS_ORIGINS"
	EnvDebug          = "WARDEN_DEBUG"
	EnvBaseDir        = "WARDEN_BASE_DIR"
	EnvCSRFSecret     = "WARDEN_CSRF_SECRET"
	EnvCSRFTTL        = "WARDEN_CSRF_TTL"
	EnvLogLevel       = "WARDEN_LOG_LEVEL"
	EnvLogFile        = "WARDEN_LOG_FILE"
	EnvSentryDSN      = "SENTRY_DSN"
	EnvSentryEnv      = "SENTRY_ENVIRONMENT"
	EnvJanitor        = "WARDEN_JANITOR_ENABLED"
	EnvJanitorCron    = "WARDEN_JANITOR_SCHEDULE"
	EnvJanitorMaxAge  = "WARDEN_JANITOR_MAX_AGE"
	EnvAppEnvironment = "WARDEN_ENV"
)

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err))
				return
			}
			*dst = n
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*dst = out
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err))
				return
			}
			*dst = b
		}
	}

	str(EnvAppEnvironment, &cfg.App.Env)
	str(EnvAddr, &cfg.Server.Addr)
	boolean(EnvTrustProxy, &cfg.Server.TrustProxy)
	integer(EnvRateLimit, &cfg.Server.RateLimitRPM)
	list(EnvCORSOrigins, &cfg.Server.CORSOrigins)
	boolean(EnvDebug, &cfg.Server.Debug)
	str(EnvBaseDir, &cfg.Paths.Base)
	str(EnvCSRFSecret, &cfg.CSRF.Secret)
	dur(EnvCSRFTTL, &cfg.CSRF.TTL)
	str(EnvLogLevel, &cfg.Log.Level)
	str(EnvLogFile, &cfg.Log.File.Path)
	str(EnvSentryDSN, &cfg.Log.Sentry.DSN)
	str(EnvSentryEnv, &cfg.Log.Sentry.Environment)
	boolean(EnvJanitor, &cfg.Janitor.Enabled)
	str(EnvJanitorCron, &cfg.Janitor.Schedule)
	dur(EnvJanitorMaxAge, &cfg.Janitor.MaxAge)

	return errors.Join(errs...)
}
