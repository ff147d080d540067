package http

import (
	"context"
	"net/http"

	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/logger"
)

type contextKey string

const claimsKey contextKey = "claims"

// AuthMiddleware validates the bearer token and stores its claims in the context
func AuthMiddleware(tokens *auth.Manager) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				logger.Warn(r.Context()).Msg("Missing or malformed authorization header")
				respondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn(r.Context()).Err(err).Msg("Invalid token")
				respondError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			logger.Debug(r.Context()).
				Uint("user_id", claims.UserID).
				Str("username", claims.Username).
				Str("role", string(claims.Role)).
				Msg("User authenticated")

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// ReconcilerMiddleware admits only roles allowed to record and confirm counts
func ReconcilerMiddleware(tokens *auth.Manager) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return AuthMiddleware(tokens)(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r.Context())
			if !claims.Role.CanReconcile() {
				logger.Warn(r.Context()).
					Str("role", string(claims.Role)).
					Msg("Reconciliation access denied")
				respondError(w, http.StatusForbidden, "Admin or supervisor role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func claimsFrom(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return &auth.Claims{}
}
