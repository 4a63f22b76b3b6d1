package oauth

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// StateAudience es el audience fijo de los state firmados. Un JWT de otro uso
// con la misma clave (no debería existir, pero igual) no pasa la verificación.
const StateAudience = "authorize-state"

// AuthState son los parámetros del authorize request que viajan firmados a
// través del redirect al IdP y de vuelta. Nada de esto se confía sin verificar
// la firma primero.
type AuthState struct {
	ClientID            string `json:"cid"`
	RedirectURI         string `json:"redir"`
	CodeChallenge       string `json:"cc"`
	CodeChallengeMethod string `json:"ccm"`
	ClientState         string `json:"cst,omitempty"`
	Scope               string `json:"scope,omitempty"`
}

// Errores de verificación de state. El caller responde 400 plano, sin redirect.
var (
	ErrStateInvalid = errors.New("invalid state token")
	ErrStateExpired = errors.New("state token expired")
)

// StateCodec firma y verifica el state como JWT HS256 (HMAC-SHA256 keyed).
// La clave viene derivada del server secret con dominio propio; ver
// internal/security/keys.
type StateCodec struct {
	key []byte
	ttl time.Duration
}

// NewStateCodec crea el codec con la clave HMAC derivada y el TTL del state.
func NewStateCodec(key []byte, ttl time.Duration) *StateCodec {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateCodec{key: key, ttl: ttl}
}

type stateClaims struct {
	AuthState
	jwtv5.RegisteredClaims
}

// Encode firma el AuthState y retorna el token opaco para el round trip.
func (c *StateCodec) Encode(st AuthState) (string, error) {
	now := time.Now().UTC()
	claims := stateClaims{
		AuthState: st,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Audience:  jwtv5.ClaimStrings{StateAudience},
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(c.key)
}

// Decode verifica firma, audience y expiración, y retorna el payload.
// Un token sin firma, mal firmado o adulterado es ErrStateInvalid: no hay
// fallback "unsigned-but-valid".
func (c *StateCodec) Decode(token string) (*AuthState, error) {
	if token == "" {
		return nil, ErrStateInvalid
	}

	var claims stateClaims
	tk, err := jwtv5.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return c.key, nil
	},
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithAudience(StateAudience),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrStateExpired
		}
		return nil, ErrStateInvalid
	}
	if !tk.Valid {
		return nil, ErrStateInvalid
	}

	st := claims.AuthState
	if st.ClientID == "" || st.RedirectURI == "" || st.CodeChallenge == "" {
		return nil, ErrStateInvalid
	}
	return &st, nil
}
