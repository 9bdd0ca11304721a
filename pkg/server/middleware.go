package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/m-mizutani/burrow/pkg/utils/logging"
)

// statusWriter captures the response status for the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// withRequestLog tags every request with a UUID, attaches a scoped
// logger to the context, and writes one access log line per request.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		logger := logging.From(r.Context()).With("request_id", requestID)
		ctx := logging.With(r.Context(), logger)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Request-ID", requestID)

		started := time.Now()
		next.ServeHTTP(sw, r.WithContext(ctx))

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(started),
		)
	})
}
