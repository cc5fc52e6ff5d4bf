package handlers

import (
	"log/slog"
	nethttp "net/http"
	"sort"
	"strings"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/poller"
)

type nowFunc func() time.Time

// StatusSource is the read side of the poller.
type StatusSource interface {
	Statuses() map[string]poller.Status
	Ready() bool
}

// Counter reports the forwarded events count for the current reset window.
type Counter interface {
	Count() int64
}

// StatusResponse is the body served on /status.
type StatusResponse struct {
	Provider       string                   `json:"provider"`
	ForwardedCount int64                    `json:"forwarded_count"`
	Ready          bool                     `json:"ready"`
	Time           time.Time                `json:"time"`
	Targets        map[string]poller.Status `json:"targets"`
}

// Handler serves the health and status endpoints.
type Handler struct {
	provider string
	status   StatusSource
	counter  Counter
	logger   *slog.Logger
	now      nowFunc
}

// NewHandler constructs a Handler. A nil status source reports ready.
func NewHandler(provider string, status StatusSource, counter Counter, logger *slog.Logger) *Handler {
	return &Handler{
		provider: provider,
		status:   status,
		counter:  counter,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	switch r.URL.Path {
	case "/health":
		h.Health(w, r)
	case "/ready":
		h.Ready(w, r)
	case "/status":
		h.Status(w, r)
	default:
		writeError(w, r, nethttp.StatusNotFound, "not found", h.logger)
	}
}

// Health reports liveness.
func (h *Handler) Health(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !h.readOnly(w, r) {
		return
	}
	if err := r.Context().Err(); err != nil {
		writeError(w, r, nethttp.StatusServiceUnavailable, "shutting down", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Ready reports whether every enabled loop has succeeded recently.
func (h *Handler) Ready(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !h.readOnly(w, r) {
		return
	}
	if h.status == nil || h.status.Ready() {
		writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ready"}, h.logger)
		return
	}
	writeError(w, r, nethttp.StatusServiceUnavailable, h.notReadyReason(), h.logger)
}

// Status returns per-target loop state and the forwarded count.
func (h *Handler) Status(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !h.readOnly(w, r) {
		return
	}
	resp := StatusResponse{
		Provider: h.provider,
		Ready:    true,
		Time:     h.now().UTC(),
		Targets:  map[string]poller.Status{},
	}
	if h.status != nil {
		resp.Targets = h.status.Statuses()
		resp.Ready = h.status.Ready()
	}
	if h.counter != nil {
		resp.ForwardedCount = h.counter.Count()
	}
	logging.Debug(logging.FromContext(r.Context(), h.logger), "served status", slog.Int64(logging.FieldCount, resp.ForwardedCount))
	writeJSON(w, nethttp.StatusOK, resp, h.logger)
}

// notReadyReason lists the failing targets, e.g. "events: pacs rejected events batch".
func (h *Handler) notReadyReason() string {
	var reasons []string
	for name, st := range h.status.Statuses() {
		if st.IsReady() {
			continue
		}
		msg := st.LastError
		if msg == "" {
			msg = "no successful cycle yet"
		}
		reasons = append(reasons, name+": "+msg)
	}
	if len(reasons) == 0 {
		return "not ready"
	}
	sort.Strings(reasons)
	return strings.Join(reasons, "; ")
}

func (h *Handler) readOnly(w nethttp.ResponseWriter, r *nethttp.Request) bool {
	if r.Method == nethttp.MethodGet || r.Method == nethttp.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeError(w, r, nethttp.StatusMethodNotAllowed, "method not allowed", h.logger)
	return false
}
