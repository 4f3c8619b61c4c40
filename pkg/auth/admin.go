package auth

import (
	"context"
	"log/slog"
	"net/http"
)

const isAdminKey contextKey = "is_admin"

// WithIsAdmin stores the admin flag in the context.
func WithIsAdmin(ctx context.Context, isAdmin bool) context.Context {
	return context.WithValue(ctx, isAdminKey, isAdmin)
}

// IsAdminFromContext returns whether the authenticated user is an operator.
// Returns false when not set.
func IsAdminFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(isAdminKey).(bool)
	return v
}

// AdminCheck reports whether userID may use operator endpoints.
type AdminCheck func(ctx context.Context, userID string) (bool, error)

// RequireAdmin rejects requests from non-operators with 403. It must run
// after RequireAuth or DevAuth.
func RequireAdmin(check AdminCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok || userID == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			isAdmin, err := check(r.Context(), userID)
			if err != nil {
				slog.ErrorContext(r.Context(), "admin check failed", "error", err, "user_id", userID)
				writeError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			if !isAdmin {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIsAdmin(r.Context(), true)))
		})
	}
}
