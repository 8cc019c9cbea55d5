package controllers

import (
	"net/http"

	"github.com/sandgallery/sandgallery-backend/api/middleware"
	"github.com/sandgallery/sandgallery-backend/api/responses"
	"github.com/sandgallery/sandgallery-backend/api/validators"
	"github.com/sandgallery/sandgallery-backend/internal/artifacts"
	"github.com/sandgallery/sandgallery-backend/internal/credits"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/pagination"
)

type accountResponse struct {
	ID               string            `json:"id"`
	Email            string            `json:"email,omitempty"`
	Credits          int               `json:"credits"`
	StorageUsedBytes int64             `json:"storageUsedBytes"`
	Role             enums.AccountRole `json:"role"`
	Unlimited        bool              `json:"unlimited"`
}

func AccountGet(svc credits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credits service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		account, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accountResponse{
			ID:               account.ID,
			Email:            account.Email,
			Credits:          account.Credits,
			StorageUsedBytes: account.StorageUsedBytes,
			Role:             account.Role,
			Unlimited:        account.Unlimited,
		})
	}
}

// CreationsList returns one page of the caller's history, newest first.
func CreationsList(svc artifacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "artifact service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
