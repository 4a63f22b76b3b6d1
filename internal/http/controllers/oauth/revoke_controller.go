package oauth

import (
	"encoding/json"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	svc "github.com/dropDatabas3/mcpbridge/internal/http/services/oauth"
)

// RevokeController handles POST /revoke (RFC 7009).
type RevokeController struct {
	service *svc.RevokeService
}

// NewRevokeController creates the controller.
func NewRevokeController(s *svc.RevokeService) *RevokeController {
	return &RevokeController{service: s}
}

// Revoke handles POST /revoke. Always responds 200 with an empty JSON object:
// the RFC forbids revealing whether the token existed, and a malformed body
// simply revokes nothing.
func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := ""
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			token = body.Token
		}
	} else if err := r.ParseForm(); err == nil {
		token = r.PostForm.Get("token")
	}

	c.service.Revoke(ctx, token)

	httperrors.WriteJSON(w, http.StatusOK, struct{}{})
}
