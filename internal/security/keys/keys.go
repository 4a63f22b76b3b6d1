// Package keys deriva claves de uso específico a partir del secreto del servidor.
//
// El secreto maestro NUNCA se usa directamente: cada consumidor recibe una clave
// derivada con HKDF-SHA256 y un string de dominio propio, de modo que la clave
// de firmado de state y la de cifrado de credenciales no pueden colisionar.
package keys

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeyLength es el tamaño de toda clave derivada (32 bytes => AES-256 / HMAC-SHA256).
	KeyLength = 32

	minSecretLength = 16
)

// Dominios de derivación. Agregar aquí cualquier uso nuevo del secreto.
const (
	DomainStateSigning   = "mcpbridge/v1/state-signing"
	DomainCredentialEncr = "mcpbridge/v1/credential-encryption"
)

// Deriver deriva claves por dominio a partir de un secreto maestro.
type Deriver struct {
	secret []byte
}

// NewDeriver crea un Deriver desde el secreto del servidor.
// Acepta el secreto en base64 (std o raw) o como string crudo; requiere al menos
// 16 bytes de material.
func NewDeriver(serverSecret string) (*Deriver, error) {
	s := strings.TrimSpace(serverSecret)
	if s == "" {
		return nil, fmt.Errorf("server secret vacío; genere uno con: openssl rand -base64 32")
	}

	var material []byte
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) >= minSecretLength {
		material = b
	} else if b, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(b) >= minSecretLength {
		material = b
	} else {
		material = []byte(s)
	}

	if len(material) < minSecretLength {
		return nil, fmt.Errorf("server secret demasiado corto: %d bytes (mínimo %d)", len(material), minSecretLength)
	}
	return &Deriver{secret: material}, nil
}

// Derive retorna la clave de 32 bytes para el dominio dado.
// El mismo (secreto, dominio) produce siempre la misma clave.
func (d *Deriver) Derive(domain string) ([]byte, error) {
	if domain == "" {
		return nil, fmt.Errorf("dominio de derivación vacío")
	}
	r := hkdf.New(sha256.New, d.secret, nil, []byte(domain))
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

// StateSigningKey es un shortcut para la clave HMAC del state firmado.
func (d *Deriver) StateSigningKey() ([]byte, error) {
	return d.Derive(DomainStateSigning)
}

// CredentialKey es un shortcut para la clave AES de cifrado de credenciales upstream.
func (d *Deriver) CredentialKey() ([]byte, error) {
	return d.Derive(DomainCredentialEncr)
}
