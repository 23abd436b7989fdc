package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felipe370-hub/compras-api/internal/pkg/metrics"
)

// RecordHTTP counts and times every request by the chi route
// pattern, so /pedidos/7 and /pedidos/9 share one label.
func RecordHTTP(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.RecordHTTPRequest(r.Method, pattern, strconv.Itoa(ww.Status()), time.Since(start))
		})
	}
}
