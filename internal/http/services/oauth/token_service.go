package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/mcpbridge/internal/metrics"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
	"github.com/dropDatabas3/mcpbridge/internal/security/pkce"
	"github.com/dropDatabas3/mcpbridge/internal/security/secretbox"
	tokens "github.com/dropDatabas3/mcpbridge/internal/security/token"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
)

// GrantAuthorizationCode es el único grant type soportado.
const GrantAuthorizationCode = "authorization_code"

// TokenRequest es el POST /token ya parseado (form o JSON).
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	ClientID     string
}

// TokenResponse es el cuerpo exitoso del token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope,omitempty"`
}

// TokenService canjea authorization codes por access tokens de plataforma.
type TokenService struct {
	repo   core.Repository
	cipher *secretbox.Box
	issuer TokenIssuer
	clock  func() time.Time
}

// Exchange valida el canje y mint-ea el token.
//
// El orden importa. El code se CONSUME primero, atómico, antes de verificar
// nada: un canje con PKCE inválido también quema el code, así un atacante no
// puede usar el endpoint como oráculo para adivinar verifiers contra un code
// robado. Y todos los sub-fallos del canje (code inexistente, vencido,
// redirect_uri distinto, PKCE que no cierra) colapsan en el mismo
// ErrInvalidGrant: la respuesta no distingue cuál falló.
func (s *TokenService) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token"))

	if req.GrantType != GrantAuthorizationCode {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGrantType, req.GrantType)
	}
	if req.Code == "" {
		return nil, fmt.Errorf("%w: code required", ErrInvalidRequest)
	}
	if req.CodeVerifier == "" {
		return nil, fmt.Errorf("%w: code_verifier required", ErrInvalidRequest)
	}

	ac, err := s.repo.ConsumeAuthorizationCode(ctx, tokens.SHA256Base64URL(req.Code))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			metrics.GrantsRejected.WithLabelValues(metrics.ReasonUnknownCode).Inc()
			log.Warn("code unknown or already consumed", logger.ClientID(req.ClientID))
			return nil, ErrInvalidGrant
		}
		log.Error("code consume failed", logger.Err(err))
		return nil, ErrStorage
	}

	// Desde acá el code ya no existe: cualquier retorno de error es terminal
	// para este code, sin segunda chance.
	if ac.Expired(s.clock().UTC()) {
		metrics.GrantsRejected.WithLabelValues(metrics.ReasonExpiredCode).Inc()
		log.Warn("expired code presented", logger.ClientID(ac.ClientID))
		return nil, ErrInvalidGrant
	}
	// redirect_uri es opcional en el canje; si viene, tiene que coincidir.
	if req.RedirectURI != "" && req.RedirectURI != ac.RedirectURI {
		metrics.GrantsRejected.WithLabelValues(metrics.ReasonRedirectMismatch).Inc()
		log.Warn("redirect_uri mismatch on exchange", logger.ClientID(ac.ClientID))
		return nil, ErrInvalidGrant
	}
	if req.ClientID != "" && req.ClientID != ac.ClientID {
		metrics.GrantsRejected.WithLabelValues(metrics.ReasonClientMismatch).Inc()
		log.Warn("client_id mismatch on exchange", logger.ClientID(req.ClientID))
		return nil, ErrInvalidGrant
	}
	if !pkce.Verify(ac.CodeChallengeMethod, ac.CodeChallenge, req.CodeVerifier) {
		metrics.GrantsRejected.WithLabelValues(metrics.ReasonPKCEFailed).Inc()
		log.Warn("pkce verification failed", logger.ClientID(ac.ClientID))
		return nil, ErrInvalidGrant
	}

	// El access token upstream cifrado acompaña al code por si la emisión
	// necesitara re-verificar contra el IdP; hoy el mint usa la identidad ya
	// verificada en el callback.
	if _, err := s.cipher.Decrypt(ac.UpstreamAccessTokenEnc); err != nil {
		log.Error("upstream token decrypt failed", logger.Err(err))
		return nil, ErrStorage
	}

	scope := ac.Scope
	if scope == "" {
		scope = DefaultScope
	}
	label := "mcp-bridge"
	if ac.UserEmail != "" {
		label = "mcp-bridge:" + ac.UserEmail
	}
	access, err := s.issuer.Mint(ctx, ac.UserID, label, strings.Fields(scope))
	if err != nil {
		log.Error("platform token mint failed", logger.Err(err), logger.UserID(ac.UserID))
		return nil, ErrTokenService
	}

	metrics.TokensIssued.Inc()
	log.Info("token issued",
		logger.ClientID(ac.ClientID),
		logger.UserID(ac.UserID),
		logger.GrantType(req.GrantType),
		logger.Scope(scope),
	)
	return &TokenResponse{
		AccessToken: access,
		TokenType:   "bearer",
		Scope:       scope,
	}, nil
}
