package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/restamate/pos-server/internal/app/metrics"
	"github.com/restamate/pos-server/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routeLabel returns the matched route template ("/orders/{id}") so the
// metric label set stays bounded regardless of how many ids pass through.
// Requires running inside the router; an unmatched request gets a constant.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// RequestLog logs every request with its status and duration and feeds the
// HTTP metrics. Websocket upgrades bypass the recorder since they hijack the
// connection. Register it on the router itself so the route template is
// resolvable for the metric's path label.
func RequestLog(log *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		metrics.ObserveHTTPRequest(r.Method, routeLabel(r), rec.status, duration)
		log.WithContext(r.Context()).WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": duration.Milliseconds(),
		}).Info("request handled")
	})
}
