package oauth

import (
	"net/http"

	dto "github.com/dropDatabas3/mcpbridge/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	"github.com/dropDatabas3/mcpbridge/internal/http/helpers"
	svc "github.com/dropDatabas3/mcpbridge/internal/http/services/oauth"
	"github.com/dropDatabas3/mcpbridge/internal/security/pkce"
)

// MetadataController serves the OAuth discovery documents. Both documents are
// derived from the effective request origin so the same binary works behind
// any hostname without reconfiguration.
type MetadataController struct {
	publicURL string
}

// NewMetadataController creates the controller.
func NewMetadataController(publicURL string) *MetadataController {
	return &MetadataController{publicURL: publicURL}
}

// AuthorizationServer handles GET /.well-known/oauth-authorization-server.
func (c *MetadataController) AuthorizationServer(w http.ResponseWriter, r *http.Request) {
	base := helpers.BaseURL(r, c.publicURL)

	httperrors.WriteJSON(w, http.StatusOK, dto.AuthorizationServerMetadata{
		Issuer:                            base,
		AuthorizationEndpoint:             base + "/authorize",
		TokenEndpoint:                     base + "/token",
		RegistrationEndpoint:              base + "/register",
		RevocationEndpoint:                base + "/revoke",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{svc.GrantAuthorizationCode},
		// "plain" se acepta en el canje pero no se anuncia.
		CodeChallengeMethodsSupported:     []string{pkce.MethodS256},
		TokenEndpointAuthMethodsSupported: []string{"none"},
		ScopesSupported:                   []string{svc.ScopeRead, svc.ScopeWrite},
	})
}

// ProtectedResource handles GET /.well-known/oauth-protected-resource.
func (c *MetadataController) ProtectedResource(w http.ResponseWriter, r *http.Request) {
	base := helpers.BaseURL(r, c.publicURL)

	httperrors.WriteJSON(w, http.StatusOK, dto.ProtectedResourceMetadata{
		Resource:               base,
		AuthorizationServers:   []string{base},
		ScopesSupported:        []string{svc.ScopeRead, svc.ScopeWrite},
		BearerMethodsSupported: []string{"header"},
	})
}
