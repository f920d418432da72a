package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/otpgate/otpgate/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AccountContextKey is the key for storing account claims in context
	AccountContextKey contextKey = "account"
)

// Middleware validates session tokens and injects account claims into context
func Middleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountFromContext extracts account claims from request context
func GetAccountFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(AccountContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
