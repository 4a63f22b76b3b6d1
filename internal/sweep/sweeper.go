// Package sweep borra periódicamente authorization codes vencidos que nunca
// se canjearon. Es housekeeping puro: la expiración se verifica en el canje,
// esto solo evita que la tabla crezca sin límite.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/mcpbridge/internal/metrics"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
)

// DefaultInterval entre pasadas.
const DefaultInterval = 5 * time.Minute

// Sweeper elimina filas vencidas en intervalos fijos.
type Sweeper struct {
	repo     core.AuthorizationCodeRepository
	interval time.Duration
}

// New crea el sweeper. interval <= 0 usa DefaultInterval.
func New(repo core.AuthorizationCodeRepository, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{repo: repo, interval: interval}
}

// Run bloquea hasta que ctx se cancele. Una pasada fallida se loguea y se
// reintenta en el próximo tick.
func (s *Sweeper) Run(ctx context.Context) error {
	log := logger.L().With(logger.Component("sweep"))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info("sweeper started", logger.Duration(s.interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx, log)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, log *zap.Logger) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := s.repo.DeleteExpiredAuthorizationCodes(cctx, time.Now().UTC())
	if err != nil {
		log.Warn("sweep pass failed", logger.Err(err))
		return
	}
	if n > 0 {
		metrics.CodesSwept.Add(float64(n))
		log.Info("expired codes removed", logger.Count(int(n)))
	}
}
