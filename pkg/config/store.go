package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/warden/pkg/csrf"
	"github.com/dmitrymomot/warden/pkg/logger"
)

// Store holds the current configuration and swaps it atomically on
// Update or Reload. Reads never block each other.
type Store struct {
	cfg      Config
	path     string
	opts     []LoadOption
	logger   *slog.Logger
	onChange []func(Config)
	mu       sync.RWMutex
}

var _ csrf.SecretSource = (*Store)(nil)

// NewStore wraps cfg. path and opts are reused by Reload and Watch; an empty
// path makes the store in-memory only.
func NewStore(cfg *Config, path string, opts ...LoadOption) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: cfg.Clone(), path: path, opts: opts, logger: logger.NewNope()}
}

// Open loads path and returns a store bound to it.
func Open(path string, opts ...LoadOption) (*Store, error) {
	cfg, err := Load(path, opts...)
	if err != nil {
		return nil, err
	}
	return NewStore(cfg, path, opts...), nil
}

// SetLogger sets the logger used by Watch.
func (s *Store) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.logger = l
	s.mu.Unlock()
}

// Path returns the configuration file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// CSRF returns the current token secret and lifetime.
func (s *Store) CSRF() (string, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.CSRF.Secret, s.cfg.CSRF.TTL
}

// OnChange registers fn to run after every successful Update or Reload.
func (s *Store) OnChange(fn func(Config)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Update applies fn to a copy of the configuration and stores the result
// if it validates.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	next := s.cfg.Clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cfg = next
	hooks := s.onChange
	s.mu.Unlock()

	for _, h := range hooks {
		h(next.Clone())
	}
	return nil
}

// Reload re-reads the configuration file and environment. On error the
// current configuration is kept.
func (s *Store) Reload() error {
	cfg, err := Load(s.path, s.opts...)
	if err != nil {
		return err
	}
	return s.Update(func(c *Config) { *c = *cfg })
}

// Watch reloads the store whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are
// picked up. Reload failures are logged and the previous config is kept.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return ErrNoFile
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			s.reloadLogged(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log().WarnContext(ctx, "config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (s *Store) reloadLogged(ctx context.Context) {
	log := s.log()
	if err := s.Reload(); err != nil {
		// A half-written file fails to parse; the next write event retries.
		level := slog.LevelError
		if errors.Is(err, ErrParse) {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, "config reload failed", slog.String("path", s.path), slog.String("error", err.Error()))
		return
	}
	log.InfoContext(ctx, "config reloaded", slog.String("path", s.path))
}

func (s *Store) log() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}
