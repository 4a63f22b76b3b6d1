// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
)

// HealthController maneja las rutas de health check.
type HealthController struct {
	repo core.Repository
}

// NewHealthController crea el controller de health check.
func NewHealthController(repo core.Repository) *HealthController {
	return &HealthController{repo: repo}
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}

// Healthz maneja GET /healthz: liveness puro, sin tocar dependencias.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Readyz maneja GET /readyz: verifica el storage compartido.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := c.repo.Ping(ctx); err != nil {
		logger.From(r.Context()).Warn("readiness check failed", logger.Err(err))
		httperrors.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Storage: "down"})
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, healthResponse{Status: "ready", Storage: "up"})
}
