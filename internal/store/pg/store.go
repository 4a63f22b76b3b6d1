// Package pg implementa core.Repository sobre Postgres con pgx.
//
// Es el backend compartido entre instancias: un code emitido por una instancia
// se canjea en cualquier otra. El consumo one-shot se resuelve con un único
// DELETE ... RETURNING (atómico a nivel de storage, sin transacción explícita).
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mcpbridge/internal/store/core"
)

// Store implementa core.Repository.
type Store struct {
	pool *pgxpool.Pool
}

// Config para el pool de Postgres.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MinIdleConns    int
	ConnMaxLifetime time.Duration
}

// New crea el Store y valida la conexión con un ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MinIdleConns > 0 {
		pc.MinConns = int32(cfg.MinIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() { s.pool.Close() }

// ─── ClientRepository ───

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	const query = `
		INSERT INTO oauth_client
			(id, client_id, client_name, redirect_uris, grant_types, response_types, token_endpoint_auth_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		c.ID, c.ClientID, c.ClientName, c.RedirectURIs, c.GrantTypes, c.ResponseTypes,
		c.TokenEndpointAuthMethod, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*core.Client, error) {
	const query = `
		SELECT id, client_id, client_name, redirect_uris, grant_types, response_types, token_endpoint_auth_method, created_at
		FROM oauth_client WHERE client_id = $1
	`
	var c core.Client
	err := s.pool.QueryRow(ctx, query, clientID).Scan(
		&c.ID, &c.ClientID, &c.ClientName, &c.RedirectURIs, &c.GrantTypes, &c.ResponseTypes,
		&c.TokenEndpointAuthMethod, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ─── AuthorizationCodeRepository ───

func (s *Store) CreateAuthorizationCode(ctx context.Context, ac *core.AuthorizationCode) error {
	const query = `
		INSERT INTO oauth_authorization_code
			(code_hash, client_id, redirect_uri, code_challenge, code_challenge_method,
			 upstream_access_token_enc, upstream_refresh_token_enc,
			 user_id, user_email, scope, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.pool.Exec(ctx, query,
		ac.CodeHash, ac.ClientID, ac.RedirectURI, ac.CodeChallenge, ac.CodeChallengeMethod,
		ac.UpstreamAccessTokenEnc, ac.UpstreamRefreshTokenEnc,
		ac.UserID, ac.UserEmail, ac.Scope, ac.CreatedAt, ac.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

// ConsumeAuthorizationCode: fetch+delete en una sola sentencia. Dos requests
// compitiendo por el mismo code ven exactamente un RETURNING; el otro recibe
// ErrNoRows => ErrNotFound.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, codeHash string) (*core.AuthorizationCode, error) {
	const query = `
		DELETE FROM oauth_authorization_code
		WHERE code_hash = $1
		RETURNING code_hash, client_id, redirect_uri, code_challenge, code_challenge_method,
		          upstream_access_token_enc, upstream_refresh_token_enc,
		          user_id, user_email, scope, created_at, expires_at
	`
	var ac core.AuthorizationCode
	err := s.pool.QueryRow(ctx, query, codeHash).Scan(
		&ac.CodeHash, &ac.ClientID, &ac.RedirectURI, &ac.CodeChallenge, &ac.CodeChallengeMethod,
		&ac.UpstreamAccessTokenEnc, &ac.UpstreamRefreshTokenEnc,
		&ac.UserID, &ac.UserEmail, &ac.Scope, &ac.CreatedAt, &ac.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (s *Store) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM oauth_authorization_code WHERE expires_at < $1`
	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// isUniqueViolation detecta 23505 sin acoplar a pgconn en todos los call sites.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type sqlState interface{ SQLState() string }
	var st sqlState
	if errors.As(err, &st) {
		return st.SQLState() == "23505"
	}
	return false
}

var _ core.Repository = (*Store)(nil)
