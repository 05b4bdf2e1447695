package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const AdminIDKey contextKey = "adminID"

// AdminHeader lets a fronting proxy name the acting admin. Authentication
// happens upstream; this only tags the request.
const AdminHeader = "X-Admin-ID"

// AdminIdentity stores the acting admin in the request context, falling back
// to the configured identity.
func AdminIdentity(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			adminID := strings.TrimSpace(r.Header.Get(AdminHeader))
			if adminID == "" {
				adminID = fallback
			}
			ctx := context.WithValue(r.Context(), AdminIDKey, adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminID extracts the admin ID from context
func GetAdminID(ctx context.Context) string {
	adminID, ok := ctx.Value(AdminIDKey).(string)
	if !ok {
		return ""
	}
	return adminID
}
