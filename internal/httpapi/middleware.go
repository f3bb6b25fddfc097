package httpapi

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/voyahub/busbridge/internal/logging"
)

// requestLogger logs one line per request with the final status and timing.
// The response writer is wrapped to capture the status while preserving
// streaming interfaces.
func requestLogger(logger logging.ServiceLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request", logging.LogFields{
				"method":    r.Method,
				"path":      r.URL.Path,
				"status":    ww.Status(),
				"bytes":     ww.BytesWritten(),
				"elapsedMs": time.Since(start).Milliseconds(),
				"requestId": chimw.GetReqID(r.Context()),
			})
		})
	}
}
