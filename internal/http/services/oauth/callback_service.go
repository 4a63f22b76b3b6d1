package oauth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dropDatabas3/mcpbridge/internal/idp"
	"github.com/dropDatabas3/mcpbridge/internal/metrics"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
	"github.com/dropDatabas3/mcpbridge/internal/security/secretbox"
	tokens "github.com/dropDatabas3/mcpbridge/internal/security/token"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
)

// CallbackRequest es el retorno del IdP, por cualquiera de los dos caminos.
//
// Camino code: el IdP redirige con ?code= y el service lo intercambia server
// side. Camino fragment: el IdP devolvió los tokens en el fragment de la URL,
// la página relay los postea a /callback/complete y llegan acá directo. Ambos
// convergen en la misma verificación de identidad.
type CallbackRequest struct {
	// State es el token firmado que viajó por el round trip del IdP.
	State string

	// Code del IdP (camino code). Vacío en el camino fragment.
	Code string

	// Tokens upstream (camino fragment). AccessToken vacío en el camino code.
	AccessToken  string
	RefreshToken string

	// BaseURL es el issuer efectivo; reconstruye la callback URL exacta que se
	// usó en authorize, que el IdP exige repetir en el exchange.
	BaseURL string
}

// CallbackService cierra el round trip del IdP: verifica el state, obtiene y
// verifica los tokens upstream, emite el authorization code propio y arma el
// redirect de vuelta al cliente.
type CallbackService struct {
	repo   core.Repository
	codec  *StateCodec
	cipher *secretbox.Box
	idp    IdentityBridge
	clock  func() time.Time
}

// Complete retorna la URL del cliente (redirect_uri + code + state original).
//
// El state se verifica ANTES de tocar cualquier otra cosa del request: si la
// firma no cierra, acá no hay redirect_uri confiable al que redirigir y el
// fallo es un 400 plano.
func (s *CallbackService) Complete(ctx context.Context, req CallbackRequest) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.callback"))

	st, err := s.codec.Decode(req.State)
	if err != nil {
		log.Warn("state verification failed", logger.Err(err))
		if err == ErrStateExpired {
			return "", fmt.Errorf("%w: state expired, restart the authorization flow", ErrInvalidRequest)
		}
		return "", fmt.Errorf("%w: invalid state", ErrInvalidRequest)
	}

	var upstream *idp.Tokens
	switch {
	case req.Code != "":
		callbackURL := req.BaseURL + "/callback?" + url.Values{"state": {req.State}}.Encode()
		upstream, err = s.idp.ExchangeCode(ctx, req.Code, callbackURL)
		if err != nil {
			log.Error("upstream code exchange failed", logger.Err(err))
			return "", ErrIdentity
		}
	case req.AccessToken != "":
		upstream = &idp.Tokens{AccessToken: req.AccessToken, RefreshToken: req.RefreshToken}
	default:
		return "", fmt.Errorf("%w: neither code nor access_token present", ErrInvalidRequest)
	}

	// Los dos caminos convergen acá: el access token upstream se verifica
	// contra el IdP antes de emitir nada.
	ident, err := s.idp.Verify(ctx, upstream.AccessToken)
	if err != nil {
		log.Warn("upstream token rejected", logger.Err(err), logger.ClientID(st.ClientID))
		return "", ErrIdentity
	}

	accessEnc, err := s.cipher.Encrypt(upstream.AccessToken)
	if err != nil {
		log.Error("access token encrypt failed", logger.Err(err))
		return "", ErrStorage
	}
	var refreshEnc string
	if upstream.RefreshToken != "" {
		refreshEnc, err = s.cipher.Encrypt(upstream.RefreshToken)
		if err != nil {
			log.Error("refresh token encrypt failed", logger.Err(err))
			return "", ErrStorage
		}
	}

	code, err := tokens.NewAuthorizationCode()
	if err != nil {
		log.Error("code generation failed", logger.Err(err))
		return "", ErrStorage
	}

	now := s.clock().UTC()
	ac := &core.AuthorizationCode{
		CodeHash:                tokens.SHA256Base64URL(code),
		ClientID:                st.ClientID,
		RedirectURI:             st.RedirectURI,
		CodeChallenge:           st.CodeChallenge,
		CodeChallengeMethod:     st.CodeChallengeMethod,
		UpstreamAccessTokenEnc:  accessEnc,
		UpstreamRefreshTokenEnc: refreshEnc,
		UserID:                  ident.ID,
		UserEmail:               ident.Email,
		Scope:                   st.Scope,
		CreatedAt:               now,
		ExpiresAt:               now.Add(core.AuthorizationCodeTTL),
	}
	if err := s.repo.CreateAuthorizationCode(ctx, ac); err != nil {
		log.Error("code persist failed", logger.Err(err))
		return "", ErrStorage
	}

	redirectTo, err := url.Parse(st.RedirectURI)
	if err != nil {
		// El URI ya pasó validación en authorize; esto no debería ocurrir.
		return "", fmt.Errorf("%w: invalid redirect_uri in state", ErrInvalidRequest)
	}
	q := redirectTo.Query()
	q.Set("code", code)
	if st.ClientState != "" {
		q.Set("state", st.ClientState)
	}
	redirectTo.RawQuery = q.Encode()

	metrics.AuthorizationCodesIssued.Inc()
	log.Info("authorization code issued",
		logger.ClientID(st.ClientID),
		logger.UserID(ident.ID),
		logger.Email(ident.Email),
	)
	return redirectTo.String(), nil
}
