// Package pkce verifica pares verifier/challenge de Proof Key for Code Exchange
// (RFC 7636). Se anuncia solamente S256; "plain" se acepta por compatibilidad
// con el RFC pero no se publica en el discovery.
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Métodos soportados.
const (
	MethodS256  = "S256"
	MethodPlain = "plain"
)

// ChallengeS256 computa base64url(sha256(verifier)) sin padding.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verify compara el verifier contra el challenge almacenado según el método.
// method vacío se trata como S256 (default del authorize endpoint).
// Comparación en tiempo constante; cualquier método desconocido falla.
func Verify(method, challenge, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	switch method {
	case MethodS256, "":
		computed := ChallengeS256(verifier)
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case MethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}
