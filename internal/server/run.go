package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/warden"
	"github.com/dmitrymomot/warden/pkg/config"
)

const (
	defaultAddress           = ":8080"
	defaultShutdownTimeout   = 30 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
)

// runtimeConfig holds what runServer needs.
type runtimeConfig struct {
	handler  http.Handler
	listener net.Listener
	logger   *slog.Logger
	server   config.ServerConfig
	hooks    []func(context.Context) error
}

// RunOption configures Run.
type RunOption func(*runtimeConfig)

// WithListener serves on ln instead of listening on the configured address.
func WithListener(ln net.Listener) RunOption {
	return func(c *runtimeConfig) {
		c.listener = ln
	}
}

// ShutdownHook runs fn after the HTTP server has stopped. Hooks run in
// registration order with the shutdown timeout.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return func(c *runtimeConfig) {
		if fn != nil {
			c.hooks = append(c.hooks, fn)
		}
	}
}

// Run serves the runtime over HTTP and runs its background jobs (janitor,
// config hot reload) until ctx is done or one of them fails, then shuts
// everything down gracefully.
func Run(ctx context.Context, rt *warden.Runtime, handlerOpts []Option, opts ...RunOption) error {
	h, err := New(rt, handlerOpts...)
	if err != nil {
		return err
	}

	cfg := rt.Config.Get()
	rc := runtimeConfig{handler: h, logger: rt.Logger, server: cfg.Server}
	for _, opt := range opts {
		opt(&rc)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Janitor.Enabled {
		g.Go(func() error { return rt.Janitor.Run(gctx) })
	}
	if rt.Config.Path() != "" {
		g.Go(func() error { return rt.Config.Watch(gctx) })
	}
	g.Go(func() error { return runServer(gctx, rc) })

	return g.Wait()
}

// runServer blocks until ctx is done or the server fails.
func runServer(ctx context.Context, cfg runtimeConfig) error {
	sc := cfg.server
	if sc.Addr == "" {
		sc.Addr = defaultAddress
	}
	if sc.ShutdownTimeout <= 0 {
		sc.ShutdownTimeout = defaultShutdownTimeout
	}

	server := &http.Server{
		Addr:              sc.Addr,
		Handler:           cfg.handler,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}

	ln := cfg.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", server.Addr); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		cfg.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	cfg.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	for _, hook := range cfg.hooks {
		if err := hook(shutdownCtx); err != nil {
			errs = append(errs, err)
			cfg.logger.Error("shutdown hook failed", slog.Any("error", err))
		}
	}

	if len(errs) > 0 {
		cfg.logger.Error("shutdown completed with errors")
		return errors.Join(errs...)
	}
	cfg.logger.Info("shutdown completed")
	return nil
}
