package oauth

import (
	"context"

	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
)

// RevokeService propaga revocaciones de tokens a la plataforma.
type RevokeService struct {
	issuer TokenIssuer
}

// Revoke nunca falla hacia el caller: RFC 7009 pide responder success aunque
// el token sea desconocido o inválido, y acá tampoco se filtra un fallo del
// backend (eso revelaría si el token existía). El error solo se loguea.
func (s *RevokeService) Revoke(ctx context.Context, token string) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.revoke"))

	if token == "" {
		return
	}
	if err := s.issuer.Revoke(ctx, token); err != nil {
		log.Warn("upstream revocation failed", logger.Err(err))
		return
	}
	log.Info("token revoked")
}
