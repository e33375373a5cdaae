package middleware

import (
	"net/http"

	"github.com/artisancrate/billing-engine/api/responses"
	pkgAuth "github.com/artisancrate/billing-engine/pkg/auth"
	"github.com/artisancrate/billing-engine/pkg/config"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

// Auth admits requests carrying a valid bearer token and puts the caller's
// id and role on the context for handlers and log lines.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, setupErr := pkgAuth.NewVerifier(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if setupErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, setupErr, "token verification unavailable"))
				return
			}
			raw, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID, role := claims.UserID.String(), string(claims.Role)
			ctx = WithRole(WithUserID(ctx, userID), role)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(ctx, userID), role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
