package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mcpbridge/internal/store/core"
)

func newCode(hash string, expiresAt time.Time) *core.AuthorizationCode {
	now := time.Now().UTC()
	return &core.AuthorizationCode{
		CodeHash:               hash,
		ClientID:               "client-1",
		RedirectURI:            "https://client.example/cb",
		CodeChallenge:          "challenge",
		CodeChallengeMethod:    "S256",
		UpstreamAccessTokenEnc: "enc-blob",
		UserID:                 "u1",
		UserEmail:              "u1@x.com",
		Scope:                  "mcp:read mcp:write",
		CreatedAt:              now,
		ExpiresAt:              expiresAt,
	}
}

func TestClient_CreateAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	c := &core.Client{
		ID:                      "row-1",
		ClientID:                "abc",
		ClientName:              "Test Tool",
		RedirectURIs:            []string{"https://client.example/cb"},
		GrantTypes:              core.DefaultGrantTypes,
		ResponseTypes:           core.DefaultResponseTypes,
		TokenEndpointAuthMethod: core.DefaultTokenEndpointAuthMethod,
		CreatedAt:               time.Now().UTC(),
	}
	require.NoError(t, s.CreateClient(ctx, c))

	got, err := s.GetClientByClientID(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, c.RedirectURIs, got.RedirectURIs)

	// duplicado => conflict
	require.ErrorIs(t, s.CreateClient(ctx, c), core.ErrConflict)

	_, err = s.GetClientByClientID(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestConsume_OneShot(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateAuthorizationCode(ctx, newCode("h1", time.Now().Add(5*time.Minute))))

	got, err := s.ConsumeAuthorizationCode(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)

	// segundo canje del mismo code
	_, err = s.ConsumeAuthorizationCode(ctx, "h1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestConsume_ConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateAuthorizationCode(ctx, newCode("race", time.Now().Add(5*time.Minute))))

	const goroutines = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeAuthorizationCode(ctx, "race"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	require.Equal(t, 1, n, "exactly one concurrent consume must win")
}

func TestConsume_ReturnsExpiredRowForCallerCheck(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	require.NoError(t, s.CreateAuthorizationCode(ctx, newCode("old", past)))

	// la fila sigue física: el store la entrega y el caller decide por ExpiresAt
	got, err := s.ConsumeAuthorizationCode(ctx, "old")
	require.NoError(t, err)
	require.True(t, got.Expired(time.Now()))
}

func TestDeleteExpired(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.CreateAuthorizationCode(ctx, newCode("live", now.Add(5*time.Minute))))
	require.NoError(t, s.CreateAuthorizationCode(ctx, newCode("dead1", now.Add(-time.Minute))))
	require.NoError(t, s.CreateAuthorizationCode(ctx, newCode("dead2", now.Add(-time.Hour))))

	n, err := s.DeleteExpiredAuthorizationCodes(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = s.ConsumeAuthorizationCode(ctx, "live")
	require.NoError(t, err)
}
