package oauth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mcpbridge/internal/idp"
	"github.com/dropDatabas3/mcpbridge/internal/security/pkce"
	"github.com/dropDatabas3/mcpbridge/internal/security/secretbox"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
	"github.com/dropDatabas3/mcpbridge/internal/store/memory"
)

// ─── fakes ───

type fakeIdP struct {
	mu              sync.Mutex
	lastCallbackURL string
	exchangeErr     error
	verifyErr       error
	identity        idp.Identity
	tokens          idp.Tokens
}

func (f *fakeIdP) BuildAuthorizeURL(callbackURL string) (string, error) {
	f.mu.Lock()
	f.lastCallbackURL = callbackURL
	f.mu.Unlock()
	return "https://idp.example.com/authorize?redirect_uri=" + url.QueryEscape(callbackURL), nil
}

func (f *fakeIdP) ExchangeCode(_ context.Context, code, _ string) (*idp.Tokens, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	tk := f.tokens
	return &tk, nil
}

func (f *fakeIdP) Verify(_ context.Context, accessToken string) (*idp.Identity, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if accessToken != f.tokens.AccessToken {
		return nil, idp.ErrTokenInvalid
	}
	id := f.identity
	return &id, nil
}

type fakeIssuer struct {
	mu        sync.Mutex
	minted    int
	revoked   []string
	mintErr   error
	revokeErr error
}

func (f *fakeIssuer) Mint(_ context.Context, userID, _ string, _ []string) (string, error) {
	if f.mintErr != nil {
		return "", f.mintErr
	}
	f.mu.Lock()
	f.minted++
	f.mu.Unlock()
	return "platform-token-" + userID, nil
}

func (f *fakeIssuer) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	f.revoked = append(f.revoked, token)
	f.mu.Unlock()
	return f.revokeErr
}

// ─── harness ───

type testEnv struct {
	svcs   *Services
	repo   core.Repository
	idp    *fakeIdP
	issuer *fakeIssuer

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

func newTestEnv(t *testing.T, requireRegistration bool) *testEnv {
	t.Helper()

	cipher, err := secretbox.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	env := &testEnv{
		repo: memory.New(),
		idp: &fakeIdP{
			identity: idp.Identity{ID: "user-42", Email: "dev@example.com"},
			tokens:   idp.Tokens{AccessToken: "upstream-access", RefreshToken: "upstream-refresh"},
		},
		issuer: &fakeIssuer{},
		now:    time.Now().UTC(),
	}
	env.svcs = NewServices(Deps{
		Repo:                env.repo,
		Codec:               NewStateCodec([]byte("ffffffffffffffffffffffffffffffff"), 10*time.Minute),
		Cipher:              cipher,
		IdP:                 env.idp,
		Issuer:              env.issuer,
		RequireRegistration: requireRegistration,
		Clock:               env.clock,
	})
	return env
}

const testBaseURL = "https://bridge.example.com"

// runAuthorize corre el authorize y devuelve el state firmado que viajaría
// por el round trip del IdP.
func runAuthorize(t *testing.T, env *testEnv, req AuthorizeRequest) string {
	t.Helper()

	idpURL, err := env.svcs.Authorize.Authorize(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, idpURL, "https://idp.example.com/authorize")

	cb, err := url.Parse(env.idp.lastCallbackURL)
	require.NoError(t, err)
	require.Equal(t, "/callback", cb.Path)
	state := cb.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

// runCallback cierra el round trip por el camino code y devuelve el
// authorization code emitido más el state del cliente.
func runCallback(t *testing.T, env *testEnv, state string) (code, clientState string) {
	t.Helper()

	redirect, err := env.svcs.Callback.Complete(context.Background(), CallbackRequest{
		State:   state,
		Code:    "idp-code",
		BaseURL: testBaseURL,
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	code = u.Query().Get("code")
	require.NotEmpty(t, code)
	return code, u.Query().Get("state")
}

func registerClient(t *testing.T, env *testEnv, redirectURIs ...string) *core.Client {
	t.Helper()
	client, err := env.svcs.Register.Register(context.Background(), RegisterRequest{
		RedirectURIs: redirectURIs,
		ClientName:   "Example MCP Client",
	})
	require.NoError(t, err)
	return client
}

// ─── flujo completo ───

func TestFullAuthorizationCodeFlow(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:            client.ClientID,
		RedirectURI:         "https://app.example.com/cb",
		CodeChallenge:       pkce.ChallengeS256(verifier),
		CodeChallengeMethod: pkce.MethodS256,
		State:               "client-opaque-state",
		Scope:               "mcp:read",
		BaseURL:             testBaseURL,
	})

	code, clientState := runCallback(t, env, state)
	require.Equal(t, "client-opaque-state", clientState)

	resp, err := env.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://app.example.com/cb",
		CodeVerifier: verifier,
		ClientID:     client.ClientID,
	})
	require.NoError(t, err)
	require.Equal(t, "platform-token-user-42", resp.AccessToken)
	require.Equal(t, "bearer", resp.TokenType)
	require.Equal(t, "mcp:read", resp.Scope)
	require.Equal(t, 1, env.issuer.minted)
}

func TestFragmentPathConverges(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	verifier := "another-verifier-value-0123456789abcdefgh"
	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: pkce.ChallengeS256(verifier),
		BaseURL:       testBaseURL,
	})

	// Sin code: los tokens llegan directo, como los postea la página relay.
	redirect, err := env.svcs.Callback.Complete(context.Background(), CallbackRequest{
		State:        state,
		AccessToken:  "upstream-access",
		RefreshToken: "upstream-refresh",
		BaseURL:      testBaseURL,
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code)

	resp, err := env.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://app.example.com/cb",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

// ─── replay y PKCE ───

func TestCodeReplayRejected(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	verifier := "replay-test-verifier-0123456789abcdefghij"
	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: pkce.ChallengeS256(verifier),
		BaseURL:       testBaseURL,
	})
	code, _ := runCallback(t, env, state)

	req := TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://app.example.com/cb",
		CodeVerifier: verifier,
	}

	_, err := env.svcs.Token.Exchange(context.Background(), req)
	require.NoError(t, err)

	// Mismo code, mismos parámetros correctos: el replay igual se rechaza.
	_, err = env.svcs.Token.Exchange(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidGrant)
	require.Equal(t, 1, env.issuer.minted)
}

func TestFailedPKCEConsumesCode(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	verifier := "pkce-burn-verifier-0123456789abcdefghijk"
	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: pkce.ChallengeS256(verifier),
		BaseURL:       testBaseURL,
	})
	code, _ := runCallback(t, env, state)

	// Primer intento con verifier incorrecto.
	_, err := env.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://app.example.com/cb",
		CodeVerifier: "wrong-verifier-0123456789abcdefghijklmnop",
	})
	require.ErrorIs(t, err, ErrInvalidGrant)

	// El intento fallido quemó el code: el verifier correcto ya no sirve.
	_, err = env.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://app.example.com/cb",
		CodeVerifier: verifier,
	})
	require.ErrorIs(t, err, ErrInvalidGrant)
	require.Equal(t, 0, env.issuer.minted)
}

func TestConcurrentExchangeSingleWinner(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	verifier := "race-test-verifier-0123456789abcdefghijkl"
	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: pkce.ChallengeS256(verifier),
		BaseURL:       testBaseURL,
	})
	code, _ := runCallback(t, env, state)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svcs.Token.Exchange(context.Background(), TokenRequest{
				GrantType:    GrantAuthorizationCode,
				Code:         code,
				RedirectURI:  "https://app.example.com/cb",
				CodeVerifier: verifier,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidGrant):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, rejected)
	require.Equal(t, 1, env.issuer.minted)
}

// ─── expiración y mismatches ───

func TestExpiredCodeRejected(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	verifier := "expiry-test-verifier-0123456789abcdefghij"
	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: pkce.ChallengeS256(verifier),
		BaseURL:       testBaseURL,
	})
	code, _ := runCallback(t, env, state)

	env.advance(core.AuthorizationCodeTTL + time.Second)

	_, err := env.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://app.example.com/cb",
		CodeVerifier: verifier,
	})
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRedirectURIMismatchRejected(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	verifier := "mismatch-verifier-0123456789abcdefghijkl"
	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: pkce.ChallengeS256(verifier),
		BaseURL:       testBaseURL,
	})
	code, _ := runCallback(t, env, state)

	_, err := env.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://evil.example.com/cb",
		CodeVerifier: verifier,
	})
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestUnknownCodeRejected(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType:    GrantAuthorizationCode,
		Code:         "never-issued",
		RedirectURI:  "https://app.example.com/cb",
		CodeVerifier: "some-verifier-0123456789abcdefghijklmnop",
	})
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestUnsupportedGrantType(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.svcs.Token.Exchange(context.Background(), TokenRequest{
		GrantType: "client_credentials",
	})
	require.ErrorIs(t, err, ErrUnsupportedGrantType)
}

// ─── authorize ───

func TestAuthorizeRequiresPKCE(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.svcs.Authorize.Authorize(context.Background(), AuthorizeRequest{
		ClientID:    "some-client",
		RedirectURI: "https://app.example.com/cb",
		BaseURL:     testBaseURL,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAuthorizeRejectsUnknownChallengeMethod(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.svcs.Authorize.Authorize(context.Background(), AuthorizeRequest{
		ClientID:            "some-client",
		RedirectURI:         "https://app.example.com/cb",
		CodeChallenge:       "x",
		CodeChallengeMethod: "S512",
		BaseURL:             testBaseURL,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAuthorizeUnregisteredClientLenient(t *testing.T) {
	env := newTestEnv(t, false)

	// Sin require_registration el cliente desconocido pasa con warning.
	_, err := env.svcs.Authorize.Authorize(context.Background(), AuthorizeRequest{
		ClientID:      "never-registered",
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: "challenge",
		BaseURL:       testBaseURL,
	})
	require.NoError(t, err)
}

func TestAuthorizeUnregisteredClientStrict(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.svcs.Authorize.Authorize(context.Background(), AuthorizeRequest{
		ClientID:      "never-registered",
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: "challenge",
		BaseURL:       testBaseURL,
	})
	require.ErrorIs(t, err, ErrClientNotRegistered)
}

func TestAuthorizeRejectsForeignRedirectURI(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	_, err := env.svcs.Authorize.Authorize(context.Background(), AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://evil.example.com/cb",
		CodeChallenge: "challenge",
		BaseURL:       testBaseURL,
	})
	require.ErrorIs(t, err, ErrInvalidRedirectURI)
}

// ─── callback ───

func TestCallbackRejectsInvalidState(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.svcs.Callback.Complete(context.Background(), CallbackRequest{
		State:   "garbage",
		Code:    "idp-code",
		BaseURL: testBaseURL,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCallbackRejectsBadUpstreamToken(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: "challenge",
		BaseURL:       testBaseURL,
	})

	_, err := env.svcs.Callback.Complete(context.Background(), CallbackRequest{
		State:       state,
		AccessToken: "not-the-upstream-token",
		BaseURL:     testBaseURL,
	})
	require.ErrorIs(t, err, ErrIdentity)
}

func TestCallbackRequiresCodeOrToken(t *testing.T) {
	env := newTestEnv(t, false)
	client := registerClient(t, env, "https://app.example.com/cb")

	state := runAuthorize(t, env, AuthorizeRequest{
		ClientID:      client.ClientID,
		RedirectURI:   "https://app.example.com/cb",
		CodeChallenge: "challenge",
		BaseURL:       testBaseURL,
	})

	_, err := env.svcs.Callback.Complete(context.Background(), CallbackRequest{
		State:   state,
		BaseURL: testBaseURL,
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

// ─── register y revoke ───

func TestRegisterAppliesDefaults(t *testing.T) {
	env := newTestEnv(t, false)

	client := registerClient(t, env, "https://app.example.com/cb")
	require.NotEmpty(t, client.ClientID)
	require.Equal(t, []string{"authorization_code"}, client.GrantTypes)
	require.Equal(t, []string{"code"}, client.ResponseTypes)
	require.Equal(t, "none", client.TokenEndpointAuthMethod)
}

func TestRegisterRejectsBadRedirectURIs(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.svcs.Register.Register(context.Background(), RegisterRequest{})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = env.svcs.Register.Register(context.Background(), RegisterRequest{
		RedirectURIs: []string{"https://ok.example.com/cb", "not a uri"},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRevokeSwallowsBackendFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.issuer.revokeErr = errors.New("backend down")

	// No panic, no error: la revocación siempre es exitosa hacia afuera.
	env.svcs.Revoke.Revoke(context.Background(), "some-token")
	require.Equal(t, []string{"some-token"}, env.issuer.revoked)
}
