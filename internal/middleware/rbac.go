package middleware

import "net/http"

// RoleAdmin gates imports, exports, merges, and property edits.
const RoleAdmin = "admin"

func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}
			if actor.Role != role {
				writeError(w, r, http.StatusForbidden, "forbidden", "Insufficient role", map[string]string{"required": role})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
