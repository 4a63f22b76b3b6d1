package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// Tamaños por defecto para los artefactos del flujo.
const (
	// AuthorizationCodeBytes: 32 bytes random => 43 chars base64url. Inadivinable.
	AuthorizationCodeBytes = 32
	// ClientIDBytes: 16 bytes random para client_id generados por DCR.
	ClientIDBytes = 16
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewAuthorizationCode genera un authorization code de un solo uso.
func NewAuthorizationCode() (string, error) {
	return GenerateOpaqueToken(AuthorizationCodeBytes)
}

// NewClientID genera un client_id opaco para Dynamic Client Registration.
func NewClientID() (string, error) {
	return GenerateOpaqueToken(ClientIDBytes)
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
