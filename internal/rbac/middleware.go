package rbac

import (
	"net/http"

	authmw "github.com/mrich-apps/assessment-backend/internal/auth/middleware"
)

var defaultChecker = NewChecker(nil)

// Require enforces a single permission against the session role.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := authmw.RoleFromContext(r.Context())
			if role == "" || !defaultChecker.Has(role, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
