package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

type contextKey struct{}

var userIDKey contextKey

// NewAuthMiddleware extracts the caller identity established by the upstream
// auth proxy: a bearer token plus the X-User-Id header it injects after token
// validation. Requests without both are rejected before reaching a handler.
// Token issuance and validation live outside this service.
func NewAuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)

				return
			}

			userID, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
			if err != nil || userID <= 0 {
				http.Error(w, "missing user identity", http.StatusUnauthorized)

				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id stored by the middleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)

	return id, ok
}
