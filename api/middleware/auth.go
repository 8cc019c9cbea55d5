package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sandgallery/sandgallery-backend/api/responses"
	pkgAuth "github.com/sandgallery/sandgallery-backend/pkg/auth"
	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
)

// accountProvisioner creates the caller's account on first sight.
type accountProvisioner interface {
	Provision(ctx context.Context, userID, email string) (*models.Account, error)
}

// Auth verifies a bearer identity token, provisions the account and seeds the
// request context with the caller.
func Auth(verifier pkgAuth.Verifier, accounts accountProvisioner, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if accounts != nil {
				if _, err := accounts.Provision(r.Context(), identity.UserID, identity.Email); err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			}

			ctx := WithIdentity(r.Context(), identity.UserID, identity.Email)
			if logg != nil {
				ctx = logg.WithUserID(ctx, identity.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
