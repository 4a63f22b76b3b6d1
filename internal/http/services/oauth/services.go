// Package oauth contiene los services del flujo Authorization Code + PKCE
// del bridge: authorize, callback, token, register y revoke.
package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/mcpbridge/internal/idp"
	"github.com/dropDatabas3/mcpbridge/internal/security/secretbox"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
)

// Scopes soportados por la plataforma.
const (
	ScopeRead  = "mcp:read"
	ScopeWrite = "mcp:write"
)

// DefaultScope se aplica cuando el authorize request no trae scope.
const DefaultScope = ScopeRead + " " + ScopeWrite

// IdentityBridge verifica un token upstream contra el IdP y, en el camino de
// code, lo intercambia primero. Implementado por internal/idp.
type IdentityBridge interface {
	BuildAuthorizeURL(callbackURL string) (string, error)
	ExchangeCode(ctx context.Context, code, callbackURL string) (*idp.Tokens, error)
	Verify(ctx context.Context, accessToken string) (*idp.Identity, error)
}

// TokenIssuer mint-ea y revoca tokens de plataforma. Implementado por
// internal/platform.
type TokenIssuer interface {
	Mint(ctx context.Context, userID, label string, scopes []string) (string, error)
	Revoke(ctx context.Context, accessToken string) error
}

// Errores de service. Los controllers los mapean a la forma OAuth; los
// sub-fallos del token endpoint NO se diferencian hacia afuera.
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidRedirectURI   = errors.New("redirect_uri not registered for client")
	ErrClientNotRegistered  = errors.New("client not registered")
	ErrInvalidGrant         = errors.New("invalid grant")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
	ErrIdentity             = errors.New("identity verification failed")
	ErrTokenService         = errors.New("token service failed")
	ErrStorage              = errors.New("storage failure")
)

// Deps contiene las dependencias para crear los services OAuth.
type Deps struct {
	Repo   core.Repository
	Codec  *StateCodec
	Cipher *secretbox.Box
	IdP    IdentityBridge
	Issuer TokenIssuer

	// RequireRegistration rechaza authorize de clientes desconocidos.
	RequireRegistration bool

	// Clock permite congelar el tiempo en tests. Default: time.Now.
	Clock func() time.Time
}

// Services agrupa todos los services del dominio OAuth.
type Services struct {
	Register  *RegisterService
	Authorize *AuthorizeService
	Callback  *CallbackService
	Token     *TokenService
	Revoke    *RevokeService
}

// NewServices crea el agregador de services OAuth.
func NewServices(d Deps) *Services {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Services{
		Register:  &RegisterService{repo: d.Repo, clock: d.Clock},
		Authorize: &AuthorizeService{repo: d.Repo, codec: d.Codec, idp: d.IdP, requireRegistration: d.RequireRegistration},
		Callback:  &CallbackService{repo: d.Repo, codec: d.Codec, cipher: d.Cipher, idp: d.IdP, clock: d.Clock},
		Token:     &TokenService{repo: d.Repo, cipher: d.Cipher, issuer: d.Issuer, clock: d.Clock},
		Revoke:    &RevokeService{issuer: d.Issuer},
	}
}
