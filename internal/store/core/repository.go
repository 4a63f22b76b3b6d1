package core

import (
	"context"
	"time"
)

// ClientRepository persiste clientes OAuth registrados dinámicamente.
type ClientRepository interface {
	CreateClient(ctx context.Context, c *Client) error
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)
}

// AuthorizationCodeRepository persiste codes de un solo uso.
//
// ConsumeAuthorizationCode es LA operación de seguridad del sistema: fetch y
// delete en un único paso atómico a nivel storage, para que dos canjes
// concurrentes del mismo code no puedan tener éxito ambos. Retorna ErrNotFound
// si el code no existe (o ya fue consumido). La fila retornada puede estar
// vencida: el caller debe re-chequear ExpiresAt.
type AuthorizationCodeRepository interface {
	CreateAuthorizationCode(ctx context.Context, ac *AuthorizationCode) error
	ConsumeAuthorizationCode(ctx context.Context, codeHash string) (*AuthorizationCode, error)

	// DeleteExpiredAuthorizationCodes borra filas vencidas nunca canjeadas.
	// Housekeeping best-effort: la corrección no depende de esto.
	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)
}

// Repository agrega los repos compartidos entre instancias del servidor.
type Repository interface {
	Ping(ctx context.Context) error
	Close()

	ClientRepository
	AuthorizationCodeRepository
}
