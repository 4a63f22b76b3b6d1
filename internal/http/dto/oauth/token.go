package oauth

// TokenRequest es el body de POST /token. Se acepta tanto
// application/x-www-form-urlencoded como JSON; los tags cubren el camino JSON.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier"`
	ClientID     string `json:"client_id"`
}

// TokenResponse es el body exitoso de POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope,omitempty"`
}

// CallbackCompleteRequest es el POST de la página relay con los tokens que el
// IdP devolvió en el fragment.
type CallbackCompleteRequest struct {
	State        string `json:"state"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// CallbackCompleteResponse indica a la página relay adónde navegar.
type CallbackCompleteResponse struct {
	RedirectURL string `json:"redirect_url"`
}
