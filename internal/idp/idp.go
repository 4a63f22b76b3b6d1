// Package idp implements the client for the upstream identity provider.
//
// The provider authenticates end users and hands back either an authorization
// code (exchanged server-side) or an implicit-flow token. Everything coming
// from the provider is untrusted input until Verify confirms it.
package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Identity is the verified upstream identity.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Tokens is the upstream credential pair. RefreshToken may be empty.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrTokenInvalid indica que el provider rechazó el token (inválido o vencido).
var ErrTokenInvalid = errors.New("upstream token invalid or expired")

// Config del provider upstream.
type Config struct {
	// AuthorizeURL es el endpoint de autorización al que se manda al usuario.
	AuthorizeURL string
	// TokenURL intercambia un code por tokens (server-side).
	TokenURL string
	// VerifyURL introspecciona un bearer token y retorna {id, email}.
	VerifyURL string

	ClientID     string
	ClientSecret string
	Scopes       []string

	Timeout time.Duration
}

// Provider is the HTTP client for the upstream IdP.
type Provider struct {
	cfg  Config
	http *http.Client
}

// New creates a Provider.
func New(cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// BuildAuthorizeURL arma la URL de autorización del IdP. El state firmado viaja
// como query param de la callback URL, no como state del IdP: así sobrevive a
// providers que no lo devuelven intacto.
func (p *Provider) BuildAuthorizeURL(callbackURL string) (string, error) {
	u, err := url.Parse(p.cfg.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("authorize url: %w", err)
	}
	q := u.Query()
	q.Set("client_id", p.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", callbackURL)
	if len(p.cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeCode exchanges an upstream authorization code for tokens.
func (p *Provider) ExchangeCode(ctx context.Context, code, callbackURL string) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", p.cfg.ClientID)
	if p.cfg.ClientSecret != "" {
		form.Set("client_secret", p.cfg.ClientSecret)
	}
	form.Set("code", code)
	form.Set("redirect_uri", callbackURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		Error        string `json:"error"`
		ErrorDesc    string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("idp token error: %s - %s", body.Error, body.ErrorDesc)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("idp token response without access_token (status %d)", resp.StatusCode)
	}
	return &Tokens{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}, nil
}

// Verify introspects an upstream access token and returns the verified identity.
// Never trusts redirect data: this call is the only source of user id/email.
func (p *Provider) Verify(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.VerifyURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrTokenInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("idp verify: unexpected status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	if id.ID == "" {
		return nil, fmt.Errorf("idp verify: response without id")
	}
	return &id, nil
}
