package http

import (
	"net/http"
	"time"

	"github.com/tlxue/everclaw/internal/logger"
)

// withLogging writes one access-log entry per request: info for success,
// warn for 4xx and error for 5xx. The request body and credentials are never
// logged.
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		start := time.Now()
		uri := r.URL.Path
		method := r.Method

		lw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)

		duration := time.Since(start)

		event := log.Info()
		switch status := lw.Status(); {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}

		event.
			Str("uri", uri).
			Str("method", method).
			Str("client_ip", clientIP(r)).
			Int("status", lw.Status()).
			Dur("duration", duration).
			Int("size", lw.size).
			Send()
	})
}
