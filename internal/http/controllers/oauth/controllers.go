// Package oauth contains controllers for the bridge's OAuth endpoints.
package oauth

import (
	svc "github.com/dropDatabas3/mcpbridge/internal/http/services/oauth"
)

// ControllerDeps: configuración compartida por los controllers.
type ControllerDeps struct {
	// PublicURL fija el issuer. Vacío: se deriva de cada request.
	PublicURL string
}

// Controllers agrupa todos los controllers del dominio OAuth.
type Controllers struct {
	Metadata  *MetadataController
	Register  *RegisterController
	Authorize *AuthorizeController
	Callback  *CallbackController
	Token     *TokenController
	Revoke    *RevokeController
}

// NewControllers creates the OAuth controllers aggregator.
func NewControllers(s *svc.Services, deps ControllerDeps) *Controllers {
	return &Controllers{
		Metadata:  NewMetadataController(deps.PublicURL),
		Register:  NewRegisterController(s.Register),
		Authorize: NewAuthorizeController(s.Authorize, deps.PublicURL),
		Callback:  NewCallbackController(s.Callback, deps.PublicURL),
		Token:     NewTokenController(s.Token),
		Revoke:    NewRevokeController(s.Revoke),
	}
}
