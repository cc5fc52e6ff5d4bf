package http

import (
	nethttp "net/http"

	"github.com/preston-bernstein/pacs-bridge/internal/http/handlers"
)

// NewRouter exposes the status surface. GET patterns also match HEAD; the
// mux answers 405 for anything else.
func NewRouter(handler *handlers.Handler) nethttp.Handler {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("GET /ready", handler.Ready)
	mux.HandleFunc("GET /status", handler.Status)
	return mux
}
