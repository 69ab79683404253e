package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"room-booking/internal/data/entity"
	"room-booking/pkg/utils"

	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to a principal and its session token.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (entity.Principal, string, error)
}

// Auth middleware untuk validasi bearer token. isUnauthenticated tells bad
// credentials (401) apart from store failures (500).
func Auth(auth Authenticator, isUnauthenticated func(error) bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			principal, sessionToken, err := auth.Authenticate(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				if isUnauthenticated != nil && isUnauthenticated(err) {
					logger.Warn("Invalid or expired session", zap.String("path", r.URL.Path))
					utils.ResponseUnauthorized(w, "Invalid or expired session")
					return
				}
				logger.Error("Failed to validate session", zap.Error(err))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}

			// Set context dengan principal DAN session token
			ctx := utils.SetPrincipalContext(r.Context(), principal)
			ctx = utils.SetTokenContext(ctx, sessionToken)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Admin - middleware cek role admin, dipasang setelah Auth
func Admin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := utils.GetPrincipalFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			if !principal.IsAdmin() {
				logger.Warn("Admin check: non-admin access attempt",
					zap.Int64("user_id", principal.UserID),
					zap.String("path", r.URL.Path))
				utils.ResponseForbidden(w, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IsError returns a predicate matching target with errors.Is.
func IsError(target error) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}
