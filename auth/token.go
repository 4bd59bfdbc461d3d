package auth

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// ErrInvalidToken covers every verification failure: bad signature,
// malformed token, expired token. Callers must treat it as plain
// "unauthenticated" and never surface the distinction.
var ErrInvalidToken = errors.New("invalid token")

const tokenTTL = 7 * 24 * time.Hour

// Identity is the payload carried by a session token.
type Identity struct {
	AdminID string `json:"adminId"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// TokenAuth issues and verifies signed session tokens. There is no
// revocation: a token stays valid until expiry regardless of later
// account changes.
type TokenAuth struct {
	ja  *jwtauth.JWTAuth
	ttl time.Duration
}

func New(secret string) *TokenAuth {
	return &TokenAuth{
		ja:  jwtauth.New("HS256", []byte(secret), nil),
		ttl: tokenTTL,
	}
}

func (ta *TokenAuth) Issue(id Identity) (string, error) {
	claims := map[string]any{
		"adminId": id.AdminID,
		"email":   id.Email,
		"role":    id.Role,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, ta.ttl)

	_, tokenString, err := ta.ja.Encode(claims)
	return tokenString, err
}

func (ta *TokenAuth) Verify(tokenString string) (Identity, error) {
	token, err := jwtauth.VerifyToken(ta.ja, tokenString)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	claims := token.PrivateClaims()
	id := Identity{
		AdminID: stringClaim(claims, "adminId"),
		Email:   stringClaim(claims, "email"),
		Role:    stringClaim(claims, "role"),
	}
	if id.AdminID == "" || id.Email == "" || id.Role == "" {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

// TTL reports how long issued tokens remain valid.
func (ta *TokenAuth) TTL() time.Duration {
	return ta.ttl
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}
