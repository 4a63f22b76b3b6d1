package oauth

import (
	"errors"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	"github.com/dropDatabas3/mcpbridge/internal/http/helpers"
	svc "github.com/dropDatabas3/mcpbridge/internal/http/services/oauth"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
)

// AuthorizeController handles GET /authorize: validates the request and
// redirects the user agent to the upstream IdP. Validation failures are plain
// 400 responses, never redirects, because at that point the redirect_uri is
// not trusted yet.
type AuthorizeController struct {
	service   *svc.AuthorizeService
	publicURL string
}

// NewAuthorizeController creates the controller.
func NewAuthorizeController(s *svc.AuthorizeService, publicURL string) *AuthorizeController {
	return &AuthorizeController{service: s, publicURL: publicURL}
}

// Authorize handles GET /authorize.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthorizeController.Authorize"))

	q := r.URL.Query()
	req := svc.AuthorizeRequest{
		ClientID:            strings.TrimSpace(q.Get("client_id")),
		RedirectURI:         strings.TrimSpace(q.Get("redirect_uri")),
		CodeChallenge:       strings.TrimSpace(q.Get("code_challenge")),
		CodeChallengeMethod: strings.TrimSpace(q.Get("code_challenge_method")),
		State:               q.Get("state"),
		Scope:               strings.TrimSpace(q.Get("scope")),
		BaseURL:             helpers.BaseURL(r, c.publicURL),
	}

	// response_type=code es el único flujo; cualquier otro valor se rechaza
	// antes de llegar al service.
	if rt := strings.TrimSpace(q.Get("response_type")); rt != "" && rt != "code" {
		httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "unsupported response_type")
		return
	}

	idpURL, err := c.service.Authorize(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, svc.ErrInvalidRequest):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, err.Error())
		case errors.Is(err, svc.ErrInvalidRedirectURI):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "redirect_uri not registered for this client")
		case errors.Is(err, svc.ErrClientNotRegistered):
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "unknown client_id, register first")
		default:
			log.Error("authorize failed", logger.Err(err))
			httperrors.WriteOAuthError(w, http.StatusInternalServerError, httperrors.CodeServerError, "authorization failed")
		}
		return
	}

	http.Redirect(w, r, idpURL, http.StatusFound)
}
