package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
	"github.com/dropDatabas3/mcpbridge/internal/security/pkce"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
	"github.com/dropDatabas3/mcpbridge/internal/validation"
)

// AuthorizeRequest son los parámetros del GET /authorize ya parseados.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	State               string
	Scope               string

	// BaseURL es el issuer efectivo del request (respetando forwarded headers);
	// de acá sale la callback URL que se le pasa al IdP.
	BaseURL string
}

// AuthorizeService valida el authorize request y construye el redirect al IdP.
type AuthorizeService struct {
	repo                core.ClientRepository
	codec               *StateCodec
	idp                 IdentityBridge
	requireRegistration bool
}

// Authorize retorna la URL del IdP a la que redirigir al usuario.
//
// Orden de validación fijo: client_id → redirect_uri → code_challenge.
// Todo fallo acá es un 400 plano ANTES de cualquier redirect: jamás se
// redirige a un redirect_uri no validado.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize"))

	if req.ClientID == "" {
		return "", fmt.Errorf("%w: client_id required", ErrInvalidRequest)
	}
	if req.RedirectURI == "" {
		return "", fmt.Errorf("%w: redirect_uri required", ErrInvalidRequest)
	}
	// PKCE obligatorio: no existe camino sin challenge.
	if req.CodeChallenge == "" {
		return "", fmt.Errorf("%w: code_challenge required (PKCE is mandatory)", ErrInvalidRequest)
	}

	method := req.CodeChallengeMethod
	if method == "" {
		method = pkce.MethodS256
	}
	if method != pkce.MethodS256 && method != pkce.MethodPlain {
		return "", fmt.Errorf("%w: unsupported code_challenge_method %q", ErrInvalidRequest, method)
	}

	if err := validation.ValidateRedirectURI(req.RedirectURI); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	scope := req.Scope
	if scope == "" {
		scope = DefaultScope
	}
	if !validation.ValidScopeString(scope) {
		return "", fmt.Errorf("%w: malformed scope", ErrInvalidRequest)
	}

	client, err := s.repo.GetClientByClientID(ctx, req.ClientID)
	switch {
	case err == nil:
		if !client.AllowsRedirectURI(req.RedirectURI) {
			log.Warn("redirect_uri not registered",
				logger.ClientID(req.ClientID),
				logger.RedirectURI(req.RedirectURI),
			)
			return "", ErrInvalidRedirectURI
		}
	case errors.Is(err, core.ErrNotFound):
		if s.requireRegistration {
			return "", ErrClientNotRegistered
		}
		// Leniencia deliberada: callers pre-registro siguen funcionando.
		log.Warn("authorize from unregistered client", logger.ClientID(req.ClientID))
	default:
		log.Error("client lookup failed", logger.Err(err))
		return "", ErrStorage
	}

	signed, err := s.codec.Encode(AuthState{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
		ClientState:         req.State,
		Scope:               scope,
	})
	if err != nil {
		log.Error("state encode failed", logger.Err(err))
		return "", ErrStorage
	}

	// El state firmado viaja como query param de nuestra callback URL.
	callbackURL := req.BaseURL + "/callback?" + url.Values{"state": {signed}}.Encode()

	idpURL, err := s.idp.BuildAuthorizeURL(callbackURL)
	if err != nil {
		log.Error("idp authorize url failed", logger.Err(err))
		return "", ErrStorage
	}

	log.Info("authorize accepted",
		logger.ClientID(req.ClientID),
		logger.Scope(scope),
	)
	return idpURL, nil
}
