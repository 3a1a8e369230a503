// Package middleware holds chi-compatible HTTP middleware shared
// across handlers.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/loomwork/loom/internal/metrics"
)

// StructuredLogger logs every request with slog: debug on 2xx/3xx,
// warn on 4xx, error on 5xx. /healthz and /metrics are skipped to
// avoid drowning real traffic in polling noise.
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				}
				switch {
				case ww.Status() >= 500:
					logger.Error("http server error", attrs...)
				case ww.Status() >= 400:
					logger.Warn("http client error", attrs...)
				default:
					logger.Debug("http request", attrs...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Metrics records every request's method, route pattern, status, and
// duration against m. /healthz and /metrics are skipped so scraping
// itself doesn't inflate the request counters. m may be nil, in which
// case this middleware is a no-op passthrough.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil || r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chiRoutePattern(r)
			m.RecordHTTPRequest(r.Method, route, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
		})
	}
}

// chiRoutePattern returns the matched route pattern (e.g.
// "/workflows/{id}") rather than the literal request path, so the
// HTTP metric's cardinality stays bounded regardless of how many
// distinct IDs are requested.
func chiRoutePattern(r *http.Request) string {
	if rc := middleware.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
