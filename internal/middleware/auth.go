package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/auth"
	"github.com/ayush/helsa/backend/internal/models"
)

// TokenResolver turns a bearer token into the user it was issued for.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.User, error)
}

// RequireAuth is middleware that validates the bearer token and
// injects the user into the request context.
func RequireAuth(resolver TokenResolver, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r)
			if !ok {
				apperr.Write(w, log, apperr.New(apperr.Unauthenticated, "Not authenticated"))
				return
			}

			u, err := resolver.ResolveToken(r.Context(), token)
			if err != nil {
				apperr.Write(w, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
		})
	}
}

// RequireAdmin rejects users without the admin flag. It must run after
// RequireAuth.
func RequireAdmin(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := auth.UserFromContext(r.Context())
			if u == nil {
				apperr.Write(w, log, apperr.New(apperr.Unauthenticated, "Not authenticated"))
				return
			}
			if !u.IsAdmin {
				apperr.Write(w, log, apperr.New(apperr.Forbidden, "Admin privileges required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
