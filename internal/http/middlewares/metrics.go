package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mcpbridge/internal/metrics"
)

// WithMetrics observa duración y status de cada request en Prometheus.
// La label path usa el patrón de ruta de chi, no la URL cruda: las URLs de
// este dominio llevan codes y state, y además harían explotar la cardinalidad.
func WithMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			pattern := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			metrics.HTTPRequestDuration.
				WithLabelValues(pattern, r.Method, strconv.Itoa(rec.status)).
				Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
