package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/mcpbridge/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	"github.com/dropDatabas3/mcpbridge/internal/http/helpers"
	svc "github.com/dropDatabas3/mcpbridge/internal/http/services/oauth"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
)

// CallbackController handles the IdP round trip return: GET|POST /callback
// and POST /callback/complete.
//
// Two upstream response modes land here. Code mode: the IdP redirects with
// ?code= and the server exchanges it directly. Fragment mode: the IdP put the
// tokens in the URL fragment, which never reaches the server, so the
// controller serves a small relay page whose script posts the fragment to
// /callback/complete.
type CallbackController struct {
	service   *svc.CallbackService
	publicURL string
}

// NewCallbackController creates the controller.
func NewCallbackController(s *svc.CallbackService, publicURL string) *CallbackController {
	return &CallbackController{service: s, publicURL: publicURL}
}

// Callback handles GET|POST /callback.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	if err := r.ParseForm(); err != nil {
		httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "malformed request")
		return
	}
	// r.Form une query params y form body: cubre el redirect GET clásico y el
	// response_mode=form_post.
	state := r.Form.Get("state")
	code := r.Form.Get("code")

	// El IdP rechazó la autorización. Acá no hay redirect: el error se
	// responde plano, el redirect_uri del state no se tocó todavía.
	if e := r.Form.Get("error"); e != "" {
		desc := r.Form.Get("error_description")
		log.Warn("idp returned error", logger.String("idp_error", e))
		httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, strings.TrimSpace(e+" "+desc))
		return
	}

	// Sin code: los tokens vienen en el fragment, que el server jamás ve.
	// La página relay los levanta client side y los postea a
	// /callback/complete, donde recién ahí se verifica el state.
	if code == "" {
		c.serveRelayPage(w)
		return
	}

	redirectURL, err := c.service.Complete(ctx, svc.CallbackRequest{
		State:   state,
		Code:    code,
		BaseURL: helpers.BaseURL(r, c.publicURL),
	})
	if err != nil {
		c.writeCompleteError(ctx, w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// Complete handles POST /callback/complete (JSON or form body).
func (c *CallbackController) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body dto.CallbackCompleteRequest
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "malformed JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "malformed form body")
			return
		}
		body = dto.CallbackCompleteRequest{
			State:        r.Form.Get("state"),
			AccessToken:  r.Form.Get("access_token"),
			RefreshToken: r.Form.Get("refresh_token"),
		}
	}

	redirectURL, err := c.service.Complete(ctx, svc.CallbackRequest{
		State:        body.State,
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		BaseURL:      helpers.BaseURL(r, c.publicURL),
	})
	if err != nil {
		c.writeCompleteError(ctx, w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.CallbackCompleteResponse{RedirectURL: redirectURL})
}

func (c *CallbackController) writeCompleteError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController"))

	switch {
	case errors.Is(err, svc.ErrInvalidRequest):
		httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, err.Error())
	case errors.Is(err, svc.ErrIdentity):
		httperrors.WriteOAuthError(w, http.StatusInternalServerError, httperrors.CodeServerError, "upstream identity verification failed")
	default:
		log.Error("callback completion failed", logger.Err(err))
		httperrors.WriteOAuthError(w, http.StatusInternalServerError, httperrors.CodeServerError, "callback processing failed")
	}
}

// serveRelayPage escribe la página estática que traslada el fragment al
// server. No interpola nada del request: el script lee state y fragment del
// propio location, así ningún input del IdP pasa por el HTML.
func (c *CallbackController) serveRelayPage(w http.ResponseWriter) {
	// El middleware global de security headers prohíbe scripts; esta página
	// necesita su script inline, así que repone una CSP propia.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'unsafe-inline'; connect-src 'self'")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(relayPage))
}

const relayPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Completing authorization…</title></head>
<body>
<p id="msg">Completing authorization…</p>
<script>
(function () {
  var qs = new URLSearchParams(window.location.search);
  var frag = new URLSearchParams(window.location.hash.replace(/^#/, ""));
  var payload = {
    state: qs.get("state") || "",
    access_token: frag.get("access_token") || "",
    refresh_token: frag.get("refresh_token") || ""
  };
  fetch("/callback/complete", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify(payload)
  }).then(function (res) {
    return res.json().then(function (body) { return { ok: res.ok, body: body }; });
  }).then(function (r) {
    if (r.ok && r.body.redirect_url) {
      window.location.replace(r.body.redirect_url);
    } else {
      document.getElementById("msg").textContent =
        "Authorization failed: " + (r.body.error_description || r.body.error || "unknown error");
    }
  }).catch(function () {
    document.getElementById("msg").textContent = "Authorization failed: network error";
  });
})();
</script>
</body>
</html>
`
