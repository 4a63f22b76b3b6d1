package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
)

// WithRecover captura panics y devuelve server_error en lugar de crashear.
// Nunca filtra el valor del panic al cliente.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log := logger.From(r.Context())
					log.Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					httperrors.WriteOAuthError(w, http.StatusInternalServerError, httperrors.CodeServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
