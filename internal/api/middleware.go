package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/imrysn/kmti-data-management/internal/auth"
	"github.com/imrysn/kmti-data-management/internal/models"
)

type contextKey string

const userContextKey = contextKey("user")

// RequireAuth verifies the bearer token, reloads the account and attaches it
// to the request context. Deactivated or deleted accounts get 401 even when
// their token is still within its lifetime.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			respondError(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		claims, err := auth.VerifyJWT(headerParts[1], s.config.JWT.Secret)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := s.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if user == nil || !user.IsActive {
			respondError(w, http.StatusUnauthorized, "No active user found.")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin runs after RequireAuth and additionally demands the admin role.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			respondError(w, http.StatusUnauthorized, "No active user found.")
			return
		}
		if !user.IsAdmin() {
			respondError(w, http.StatusForbidden, "Access denied. Admin privileges required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserFromContext(ctx context.Context) *models.User {
	if user, ok := ctx.Value(userContextKey).(*models.User); ok {
		return user
	}
	return nil
}
