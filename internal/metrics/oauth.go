package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics del flujo OAuth. Paquete standalone para que services y
// middlewares puedan incrementar sin ciclos de import.

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_ms",
		Help:    "Duración de requests HTTP en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"path", "method", "status"})

	ClientsRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth_clients_registered_total",
		Help: "Clientes registrados vía Dynamic Client Registration",
	})

	AuthorizationCodesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth_authorization_codes_issued_total",
		Help: "Authorization codes emitidos por el callback",
	})

	TokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth_tokens_issued_total",
		Help: "Access tokens emitidos por el token endpoint",
	})

	GrantsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_grants_rejected_total",
		Help: "Canjes rechazados por el token endpoint",
	}, []string{"reason"})

	CodesSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth_codes_swept_total",
		Help: "Authorization codes vencidos eliminados por el sweeper",
	})
)

// Razones de rechazo para GrantsRejected. Son categorías internas de
// observabilidad: hacia el cliente todos colapsan en invalid_grant.
const (
	ReasonUnknownCode      = "unknown_code"
	ReasonExpiredCode      = "expired_code"
	ReasonRedirectMismatch = "redirect_mismatch"
	ReasonClientMismatch   = "client_mismatch"
	ReasonPKCEFailed       = "pkce_failed"
)

// Register registra las métricas OAuth en el registry dado (default si nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		HTTPRequestDuration,
		ClientsRegistered,
		AuthorizationCodesIssued,
		TokensIssued,
		GrantsRejected,
		CodesSwept,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
