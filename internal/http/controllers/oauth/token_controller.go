package oauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/mcpbridge/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	svc "github.com/dropDatabas3/mcpbridge/internal/http/services/oauth"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
)

// TokenController handles POST /token.
type TokenController struct {
	service *svc.TokenService
}

// NewTokenController creates the controller.
func NewTokenController(s *svc.TokenService) *TokenController {
	return &TokenController{service: s}
}

// Token handles POST /token. Accepts form encoding per RFC 6749 and JSON,
// since several MCP clients send JSON bodies.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Token"))

	body, ok := c.parseRequest(w, r)
	if !ok {
		return
	}

	resp, err := c.service.Exchange(ctx, svc.TokenRequest{
		GrantType:    body.GrantType,
		Code:         body.Code,
		RedirectURI:  body.RedirectURI,
		CodeVerifier: body.CodeVerifier,
		ClientID:     body.ClientID,
	})
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrUnsupportedGrantType):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeUnsupportedGrantType, "only authorization_code is supported")
		case errors.Is(err, svc.ErrInvalidRequest):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, err.Error())
		case errors.Is(err, svc.ErrInvalidGrant):
			// Un solo mensaje para todos los sub-fallos del canje.
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidGrant, "authorization code is invalid or expired")
		default:
			log.Error("token exchange failed", logger.Err(err))
			httperrors.WriteOAuthError(w, http.StatusInternalServerError, httperrors.CodeServerError, "token exchange failed")
		}
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Scope:       resp.Scope,
	})
}

func (c *TokenController) parseRequest(w http.ResponseWriter, r *http.Request) (dto.TokenRequest, bool) {
	var body dto.TokenRequest

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "malformed JSON body")
			return body, false
		}
		return body, true
	}

	if err := r.ParseForm(); err != nil {
		httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "malformed form body")
		return body, false
	}
	body = dto.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		ClientID:     r.PostForm.Get("client_id"),
	}
	return body, true
}
