// Package platform is the client for the platform token service, which owns
// the lifecycle of the long-lived API tokens this bridge hands out. The bridge
// never stores those tokens.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config del token service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client llama al token service por HTTP.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Mint crea un access token de plataforma para el usuario autenticado.
func (c *Client) Mint(ctx context.Context, userID, label string, scopes []string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"user_id": userID,
		"label":   label,
		"scopes":  scopes,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/tokens"), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("token service: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode mint response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token service: empty access_token")
	}
	return body.AccessToken, nil
}

// Revoke invalida un token. Idempotente: revocar un token inexistente no es error.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	payload, _ := json.Marshal(map[string]string{"token": accessToken})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/tokens/revoke"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 cuenta como éxito: el token ya no existe.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("token service: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}
