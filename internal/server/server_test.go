package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/warden"
	"github.com/dmitrymomot/warden/internal/server"
	"github.com/dmitrymomot/warden/pkg/config"
	"github.com/dmitrymomot/warden/pkg/csrf"
	"github.com/dmitrymomot/warden/pkg/logger"
)

const userAgent = "server-test"

func newRuntime(t *testing.T, secret string, mutate ...func(*config.Config)) *warden.Runtime {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.Base = t.TempDir()
	cfg.CSRF.Secret = secret
	cfg.Janitor.Enabled = false
	for _, fn := range mutate {
		fn(cfg)
	}

	rt, err := warden.New(config.NewStore(cfg, ""),
		warden.WithLogger(logger.NewNope()),
		warden.WithErrorOutput(io.Discard),
	)
	require.NoError(t, err)
	require.NoError(t, rt.Prepare())
	return rt
}

func newHandler(t *testing.T, rt *warden.Runtime, opts ...server.Option) http.Handler {
	t.Helper()
	h, err := server.New(rt, opts...)
	require.NoError(t, err)
	return h
}

func do(h http.Handler, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, body)
	r.RemoteAddr = "192.0.2.1:4000"
	r.Header.Set("User-Agent", userAgent)
	for k, v := range header {
		r.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func issue(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(h, http.MethodGet, server.PathToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token   string `json:"token"`
		Header  string `json:"header"`
		Enabled bool   `json:"enabled"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Enabled)
	require.Equal(t, csrf.HeaderName, resp.Header)
	return resp.Token
}

func TestTokenAndAudit(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "server-secret")
	h := newHandler(t, rt)
	tok := issue(t, h)

	t.Run("audit with token", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/audit/logins", strings.NewReader(`{"user":"jane","password":"x"}`),
			http.Header{"X-Csrf-Token": {tok}})
		require.Equal(t, http.StatusNoContent, rec.Code)

		recs, err := rt.Audit.Tail("logins", 1)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		require.Equal(t, "jane", recs[0]["user"])
		require.NotContains(t, recs[0], "password")
	})

	t.Run("token in query", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/audit/logins?csrf="+tok, strings.NewReader(`{}`), nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("audit without token", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/audit/logins", strings.NewReader(`{}`), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("token from another client", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/audit/logins", strings.NewReader(`{}`))
		r.RemoteAddr = "198.51.100.9:1"
		r.Header.Set("User-Agent", userAgent)
		r.Header.Set(csrf.HeaderName, tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/audit/logins", strings.NewReader(`[1,2`),
			http.Header{"X-Csrf-Token": {tok}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("hidden name", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/audit/.secret", strings.NewReader(`{}`),
			http.Header{"X-Csrf-Token": {tok}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTokenDisabled(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "")
	h := newHandler(t, rt)

	rec := do(h, http.MethodGet, server.PathToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"enabled":false}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/audit/open", strings.NewReader(`{"a":1}`), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func withDebug(c *config.Config) { c.Server.Debug = true }

func TestDebugEndpointsDisabledByDefault(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "")
	h := newHandler(t, rt)
	rt.Errors.Report(io.ErrUnexpectedEOF, "upload", "/files")

	require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, server.PathErrors, nil, nil).Code)
	rec := do(h, http.MethodGet, server.PathRoute+"?path=~/etc/passwd&dir=public", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotContains(t, rec.Body.String(), "exists")
}

func TestDebugEndpoints(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "", withDebug)
	h := newHandler(t, rt)

	rt.Errors.Report(io.ErrUnexpectedEOF, "upload", "/files")

	rec := do(h, http.MethodGet, server.PathErrors, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []struct {
			Message string `json:"message"`
			Name    string `json:"name"`
			URL     string `json:"url"`
		} `json:"records"`
		Count int64 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, int64(1), resp.Count)
	require.Len(t, resp.Records, 1)
	require.Equal(t, "unexpected EOF", resp.Records[0].Message)

	rec = do(h, http.MethodGet, server.PathRoute+"?path=_shop/public/style.css&dir=public", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	route := decodeRoute(t, rec)
	require.Equal(t, rt.Paths.Plugins("shop", "public", "style.css"), route.Target)
	require.NotNil(t, route.Stat)
	require.False(t, route.Stat.Exists)

	require.NoError(t, os.MkdirAll(rt.Paths.Public("css"), 0o755))
	require.NoError(t, os.WriteFile(rt.Paths.Public("css", "site.css"), []byte("body{}"), 0o644))
	route = decodeRoute(t, do(h, http.MethodGet, server.PathRoute+"?path=css/site.css&dir=public", nil, nil))
	require.NotNil(t, route.Stat)
	require.True(t, route.Stat.Exists)
	require.True(t, route.Stat.IsFile)
	require.Equal(t, int64(6), route.Stat.Size)

	rec = do(h, http.MethodGet, server.PathRoute, nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebugRouteOutsideBase(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "", withDebug)
	h := newHandler(t, rt)

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	for _, target := range []string{
		server.PathRoute + "?path=~" + url.QueryEscape(outside) + "&dir=public",
		server.PathRoute + "?path=" + url.QueryEscape(strings.Repeat("../", 32)+outside) + "&dir=public",
	} {
		rec := do(h, http.MethodGet, target, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotContains(t, rec.Body.String(), `"stat"`)
		route := decodeRoute(t, rec)
		require.Equal(t, outside, filepath.Clean(route.Target))
		require.Nil(t, route.Stat)
	}
}

type routeBody struct {
	Target string `json:"target"`
	Stat   *struct {
		Exists bool  `json:"exists"`
		IsFile bool  `json:"is_file"`
		Size   int64 `json:"size"`
	} `json:"stat"`
}

func decodeRoute(t *testing.T, rec *httptest.ResponseRecorder) routeBody {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var body routeBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "metrics-secret")
	h := newHandler(t, rt)
	issue(t, h)

	rec := do(h, http.MethodGet, server.PathMetrics, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "warden_csrf_issued_total 1")
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "")
	h := newHandler(t, rt)

	rec := do(h, http.MethodGet, server.PathLiveness, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())

	rec = do(h, http.MethodGet, server.PathReadiness+"?format=json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"healthy"`)

	failing := newHandler(t, newRuntime(t, ""), server.WithReadinessCheck("broken", func(context.Context) error {
		return io.ErrClosedPipe
	}))
	rec = do(failing, http.MethodGet, server.PathReadiness, nil, http.Header{"Accept": {"application/json"}})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "io: read/write on closed pipe")
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	h := newHandler(t, newRuntime(t, ""))

	rec := do(h, http.MethodGet, server.PathLiveness, nil, nil)
	require.Len(t, rec.Header().Get(server.RequestIDHeader), 36)

	rec = do(h, http.MethodGet, server.PathLiveness, nil, http.Header{"X-Request-Id": {"upstream-1"}})
	require.Equal(t, "upstream-1", rec.Header().Get(server.RequestIDHeader))

	ctx := context.Background()
	_, ok := server.RequestIDExtractor()(ctx)
	require.False(t, ok)
}

func TestRecover(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "")
	h := server.RequestID(server.Recover(rt.Errors)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})))

	rec := do(h, http.MethodGet, "/explode", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, rt.Errors.Len())
	rec0 := rt.Errors.Records()[0]
	require.Equal(t, "panic: kaboom", rec0.Message)
	require.Equal(t, "/explode", rec0.URL)
}

func TestRun(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, "")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hookRan := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, rt, nil,
			server.WithListener(ln),
			server.ShutdownHook(func(context.Context) error {
				close(hookRan)
				return nil
			}),
		)
	}()

	url := "http://" + ln.Addr().String() + server.PathLiveness
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	<-hookRan
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Paths.Base = t.TempDir()
	cfg.Server.RateLimitRPM = 2
	rt, err := warden.New(config.NewStore(cfg, ""), warden.WithLogger(logger.NewNope()), warden.WithErrorOutput(io.Discard))
	require.NoError(t, err)
	h := newHandler(t, rt)

	for range 2 {
		require.Equal(t, http.StatusOK, do(h, http.MethodGet, server.PathToken, nil, nil).Code)
	}
	rec := do(h, http.MethodGet, server.PathToken, nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other clients and unlimited routes are unaffected.
	other := httptest.NewRequest(http.MethodGet, server.PathToken, nil)
	other.RemoteAddr = "192.0.2.99:1"
	otherRec := httptest.NewRecorder()
	h.ServeHTTP(otherRec, other)
	require.Equal(t, http.StatusOK, otherRec.Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, server.PathLiveness, nil, nil).Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Paths.Base = t.TempDir()
	cfg.Server.CORSOrigins = []string{"https://app.example.com"}
	rt, err := warden.New(config.NewStore(cfg, ""), warden.WithLogger(logger.NewNope()), warden.WithErrorOutput(io.Discard))
	require.NoError(t, err)
	h := newHandler(t, rt)

	rec := do(h, http.MethodOptions, "/audit/logins", nil, http.Header{
		"Origin":                         {"https://app.example.com"},
		"Access-Control-Request-Method":  {http.MethodPost},
		"Access-Control-Request-Headers": {"X-CSRF-Token"},
	})
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(h, http.MethodGet, server.PathLiveness, nil, http.Header{"Origin": {"https://evil.example.com"}})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
