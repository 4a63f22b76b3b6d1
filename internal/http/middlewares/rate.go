package middlewares

import (
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
	"github.com/dropDatabas3/mcpbridge/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPPathRateKey: IP + path, para separar límites por endpoint sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// RateLimitConfig configura el middleware de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
}

// WithRateLimit aplica rate limiting por clave. Si el limiter falla
// (p.ej. Redis caído) el request pasa: disponibilidad sobre throttling.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = IPPathRateKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			res, err := cfg.Limiter.Allow(r.Context(), keyFn(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				httperrors.WriteOAuthError(w, http.StatusTooManyRequests, httperrors.CodeInvalidRequest, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
