package middleware

import (
	"net/http"
	"slices"

	"farmmarket/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the caller is an authenticated admin
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{domain.RoleAdmin}, logger)
}

// RequireRole middleware ensures the caller is authenticated with one of the specified roles
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, ok := OwnerFrom(r.Context())
			if !ok || !owner.IsAuthenticated() {
				logger.Warn("Role check without an authenticated account")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !slices.Contains(allowedRoles, owner.Role) {
				logger.Warn("Account role not authorized",
					zap.String("account_id", owner.AccountID.String()),
					zap.String("role", owner.Role),
					zap.Strings("allowed_roles", allowedRoles),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
