package middleware

import (
	"net/http"

	"github.com/sandgallery/sandgallery-backend/api/responses"
	"github.com/sandgallery/sandgallery-backend/internal/admin"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
)

// AdminSecret gates admin routes on the shared secret header. An unset secret
// rejects every request.
func AdminSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !admin.SecretMatches(secret, r.Header.Get(admin.HeaderSecret)) {
				if logg != nil {
					logg.Warn(r.Context(), "admin.secret_rejected")
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid admin secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
