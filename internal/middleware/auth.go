package middleware

import (
	"encoding/json"
	"net/http"

	"choreboard/internal/auth"
)

// AccessCookieName is the HTTP-only cookie carrying the signed access token.
// Tokens are never accepted from the Authorization header.
const AccessCookieName = "accessToken"

// RequireAuth verifies the access-token cookie and attaches the caller's
// identity to the request context. Verification is stateless; team membership
// is checked downstream per operation.
func RequireAuth(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AccessCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w, "access token required")
				return
			}

			id, err := issuer.VerifyAccessToken(cookie.Value)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := auth.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
