package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/pixeluwjal/sanghaforms-sub002/auth"
	"github.com/pixeluwjal/sanghaforms-sub002/httpx"
	"github.com/pixeluwjal/sanghaforms-sub002/model"
)

type ctxKey int

const identityKey ctxKey = iota

// CookieAuth authenticates requests from the HTTP-only session cookie,
// falling back to an Authorization bearer header. Any verification failure
// is a plain 401.
func CookieAuth(tokens *auth.TokenAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ""
			if c, err := r.Cookie("token"); err == nil {
				tokenString = c.Value
			} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tokenString = strings.TrimPrefix(h, "Bearer ")
			}
			if tokenString == "" {
				httpx.Unauthenticated(w, r, "auth.token.missing", nil)
				return
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				httpx.Unauthenticated(w, r, "auth.token.verify", err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the authenticated identity stored by CookieAuth.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// RequireSuperAdmin gates a route to super admins.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok || identity.Role != model.RoleSuperAdmin {
			httpx.Error(w, r, http.StatusForbidden, "super admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
