// Package httpapi exposes the bridge over HTTP: one send endpoint carrying
// both request/response and fire-and-forget traffic, plus a health probe.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/voyahub/busbridge/internal/logging"
)

// NewRouter wires the bridge endpoints behind the standard middleware stack.
func NewRouter(h *Handlers, logger logging.ServiceLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))

	// The path is a compatibility artifact: callers still post to the Kafka
	// route no matter which bus backs the bridge.
	r.Post("/api/kafka/send", h.Send)
	r.Get("/health", h.Health)

	return r
}
