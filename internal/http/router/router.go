// Package router arma la tabla de rutas del bridge.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthctrl "github.com/dropDatabas3/mcpbridge/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/mcpbridge/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/mcpbridge/internal/http/middlewares"
	"github.com/dropDatabas3/mcpbridge/internal/rate"
)

// Deps contiene todo lo necesario para construir el router.
type Deps struct {
	OAuth  *oauthctrl.Controllers
	Health *healthctrl.HealthController

	// Limiter opcional; nil desactiva el rate limiting.
	Limiter rate.Limiter
}

// New construye el handler raíz con la cadena de middlewares global.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithLogging(),
		mw.WithMetrics(),
	)

	// Discovery: cacheable, sin rate limit.
	r.Get("/.well-known/oauth-authorization-server", d.OAuth.Metadata.AuthorizationServer)
	r.Get("/.well-known/oauth-protected-resource", d.OAuth.Metadata.ProtectedResource)

	// Flujo OAuth. Todo lo que mueve codes o tokens va con no-store, y el
	// rate limit cubre los endpoints que un cliente puede martillar.
	limited := func(h http.HandlerFunc) http.Handler {
		return mw.Chain(h, mw.WithNoStore(), mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter}))
	}

	r.Method(http.MethodPost, "/register", limited(d.OAuth.Register.Register))
	r.Method(http.MethodGet, "/authorize", limited(d.OAuth.Authorize.Authorize))
	r.Method(http.MethodGet, "/callback", limited(d.OAuth.Callback.Callback))
	r.Method(http.MethodPost, "/callback", limited(d.OAuth.Callback.Callback))
	r.Method(http.MethodPost, "/callback/complete", limited(d.OAuth.Callback.Complete))
	r.Method(http.MethodPost, "/token", limited(d.OAuth.Token.Token))
	r.Method(http.MethodPost, "/revoke", limited(d.OAuth.Revoke.Revoke))

	// Operacional.
	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
