package core

import "time"

// AuthorizationCodeTTL es la vida útil de un authorization code.
// Pasado este plazo el code se trata como inexistente aunque la fila siga viva.
const AuthorizationCodeTTL = 5 * time.Minute

// Defaults para registros DCR sin campos opcionales.
var (
	DefaultGrantTypes    = []string{"authorization_code"}
	DefaultResponseTypes = []string{"code"}
)

// DefaultTokenEndpointAuthMethod: clientes públicos, sin secret.
const DefaultTokenEndpointAuthMethod = "none"

// Client es un OAuth client registrado vía Dynamic Client Registration.
// Inmutable después de creado.
type Client struct {
	ID                      string    `json:"id"`
	ClientID                string    `json:"client_id"`
	ClientName              string    `json:"client_name,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris"`
	GrantTypes              []string  `json:"grant_types"`
	ResponseTypes           []string  `json:"response_types"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	CreatedAt               time.Time `json:"created_at"`
}

// AllowsRedirectURI reporta si uri está en el set registrado (match exacto).
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode es un code de un solo uso emitido por el callback handler.
// El code en sí nunca se persiste: solamente su hash (sha256 base64url), de modo
// que una fuga de la tabla no entrega codes canjeables.
type AuthorizationCode struct {
	CodeHash            string
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string

	// Tokens upstream cifrados con secretbox. Refresh puede ser vacío.
	UpstreamAccessTokenEnc  string
	UpstreamRefreshTokenEnc string

	UserID    string
	UserEmail string
	Scope     string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reporta si el code venció respecto de now.
func (a *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
