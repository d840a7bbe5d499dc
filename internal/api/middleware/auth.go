package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/orderly/internal/auth"
)

type contextKey string

const userContextKey contextKey = "user"

// ExtractToken pulls a bearer token from cookie or Authorization header.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// OptionalAuth attaches claims to the context when a valid token is
// present. The gateway authenticates; this service only needs the
// caller identity, with the X-User-Id header as fallback.
func OptionalAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := ExtractToken(r); tokenString != "" {
				if claims, err := jwtService.ValidateAccessToken(tokenString); err == nil {
					ctx := context.WithValue(r.Context(), userContextKey, claims)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID resolves the caller identity: token claims first, then the
// X-User-Id header.
func UserID(r *http.Request) string {
	if claims, ok := r.Context().Value(userContextKey).(*auth.Claims); ok {
		return claims.UserID
	}
	return r.Header.Get("X-User-Id")
}
