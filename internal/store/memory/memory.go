// Package memory implementa core.Repository en proceso, sobre go-cache.
//
// Solo para desarrollo y tests: no sobrevive reinicios ni se comparte entre
// instancias. El consumo one-shot se serializa con un mutex propio porque
// go-cache no ofrece take condicional.
package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/mcpbridge/internal/store/core"
)

const (
	clientPrefix = "client:"
	codePrefix   = "code:"
)

// Store implementa core.Repository en memoria.
type Store struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// New crea el Store. Los codes expiran solos vía TTL de go-cache; el sweep
// explícito existe igual para mantener simetría con el adapter pg.
func New() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() { s.c.Flush() }

// ─── ClientRepository ───

func (s *Store) CreateClient(_ context.Context, c *core.Client) error {
	cp := *c
	if err := s.c.Add(clientPrefix+c.ClientID, &cp, gocache.NoExpiration); err != nil {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) GetClientByClientID(_ context.Context, clientID string) (*core.Client, error) {
	v, ok := s.c.Get(clientPrefix + clientID)
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *(v.(*core.Client))
	return &cp, nil
}

// ─── AuthorizationCodeRepository ───

func (s *Store) CreateAuthorizationCode(_ context.Context, ac *core.AuthorizationCode) error {
	cp := *ac
	ttl := time.Until(ac.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	// TTL extendido: el canje re-chequea expiry, y queremos poder testear el
	// camino "fila física viva pero vencida".
	if err := s.c.Add(codePrefix+ac.CodeHash, &cp, ttl+core.AuthorizationCodeTTL); err != nil {
		return core.ErrConflict
	}
	return nil
}

func (s *Store) ConsumeAuthorizationCode(_ context.Context, codeHash string) (*core.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codePrefix + codeHash
	v, ok := s.c.Get(key)
	if !ok {
		return nil, core.ErrNotFound
	}
	s.c.Delete(key)
	cp := *(v.(*core.AuthorizationCode))
	return &cp, nil
}

func (s *Store) DeleteExpiredAuthorizationCodes(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, item := range s.c.Items() {
		if len(key) <= len(codePrefix) || key[:len(codePrefix)] != codePrefix {
			continue
		}
		ac, ok := item.Object.(*core.AuthorizationCode)
		if !ok {
			continue
		}
		if ac.Expired(now) {
			s.c.Delete(key)
			n++
		}
	}
	return n, nil
}

var _ core.Repository = (*Store)(nil)
