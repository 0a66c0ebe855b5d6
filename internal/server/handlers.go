package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/warden"
	"github.com/dmitrymomot/warden/pkg/audit"
	"github.com/dmitrymomot/warden/pkg/csrf"
	"github.com/dmitrymomot/warden/pkg/errlog"
	"github.com/dmitrymomot/warden/pkg/stats"
)

// maxAuditBody bounds the accepted audit payload.
const maxAuditBody = 1 << 20

type handlers struct {
	rt         *warden.Runtime
	trustProxy bool
}

type tokenResponse struct {
	Token     string `json:"token,omitempty"`
	Header    string `json:"header,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// issueToken returns a token bound to the caller. With CSRF disabled the
// response only says so.
func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.rt.CSRF.Issue(csrf.FingerprintFromRequest(r, h.trustProxy))
	if errors.Is(err, csrf.ErrDisabled) {
		writeJSON(w, http.StatusOK, tokenResponse{Enabled: false})
		return
	}
	if err != nil {
		h.rt.Errors.Report(err, "csrf", r.URL.Path)
		writeError(w, http.StatusInternalServerError)
		return
	}

	_, ttl := h.rt.Config.CSRF()
	if ttl <= 0 {
		ttl = csrf.DefaultTTL
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     tok.String(),
		Header:    csrf.HeaderName,
		ExpiresIn: int64(ttl.Seconds()),
		Enabled:   true,
	})
}

// recordAudit appends the JSON object in the body to the named audit log.
func (h *handlers) recordAudit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var payload map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxAuditBody))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest)
		return
	}

	if err := h.rt.Audit.Append(r.Context(), name, payload); err != nil {
		if errors.Is(err, audit.ErrInvalidName) {
			writeError(w, http.StatusBadRequest)
			return
		}
		h.rt.Logger.ErrorContext(r.Context(), "audit append failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		h.rt.Errors.Report(err, "audit", r.URL.Path)
		writeError(w, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorsResponse struct {
	Records []errlog.Record `json:"records"`
	Count   int64           `json:"count"`
	Stats   stats.Snapshot  `json:"stats"`
}

func (h *handlers) listErrors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, errorsResponse{
		Records: h.rt.Errors.Records(),
		Count:   h.rt.Errors.Count(),
		Stats:   h.rt.Stats.Snapshot(),
	})
}

type routeStat struct {
	Exists bool  `json:"exists"`
	IsFile bool  `json:"is_file"`
	Size   int64 `json:"size"`
}

type routeResponse struct {
	Path   string     `json:"path"`
	Dir    string     `json:"dir"`
	Target string     `json:"target"`
	Stat   *routeStat `json:"stat,omitempty"`
}

// resolveRoute shows where a virtual path lands. Query: path, dir.
// Targets outside the base directory are never stat'ed.
func (h *handlers) resolveRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path, dir := q.Get("path"), q.Get("dir")
	if path == "" {
		writeError(w, http.StatusBadRequest)
		return
	}

	target := h.rt.Paths.Route(path, dir)
	resp := routeResponse{Path: path, Dir: dir, Target: target}
	if !strings.HasPrefix(path, "~") && h.rt.Paths.Within(target) {
		st := h.rt.Paths.Exists(r.Context(), target)
		resp.Stat = &routeStat{Exists: st.Exists, IsFile: st.IsFile, Size: st.Size}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
