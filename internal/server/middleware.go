package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/dmitrymomot/warden/pkg/csrf"
	"github.com/dmitrymomot/warden/pkg/errlog"
	"github.com/dmitrymomot/warden/pkg/logger"
)

type requestIDKey struct{}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// requestIDHeaders are checked in order for an upstream id.
var requestIDHeaders = []string{RequestIDHeader, "X-Correlation-ID"}

// RequestID keeps an upstream request id or generates a UUIDv4, stores it in
// the request context and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		for _, h := range requestIDHeaders {
			if v := r.Header.Get(h); v != "" {
				id = v
				break
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// GetRequestID returns the id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// RequestIDExtractor adds "request_id" to log records.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v := GetRequestID(ctx); v != "" {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}
}

// Recover turns a handler panic into a 500 response and reports it to ring
// with the request path and a stack trace.
func Recover(ring *errlog.Ring) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				var err error
				if e, ok := p.(error); ok {
					err = pkgerrors.WithStack(e)
				} else {
					err = pkgerrors.Errorf("panic: %v", p)
				}
				ring.Report(err, "http", r.URL.Path)

				writeError(w, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// corsHandler lets browsers on origins call the API with the CSRF header
// and read the request id.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", csrf.HeaderName, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		MaxAge:           3600,
		AllowCredentials: true,
	}).Handler
}
