package middleware

import (
	"net/http"
	"slices"

	"github.com/artisancrate/billing-engine/api/responses"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

// RequireRole admits requests whose token carries one of roles. It must sit
// behind Auth.
func RequireRole(logg *logger.Logger, roles ...enums.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.UserRole(RoleFromContext(r.Context()))
			if role == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing role claim"))
				return
			}
			if !slices.Contains(roles, role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Errorf(pkgerrors.CodeForbidden, "role %s may not access this route", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
