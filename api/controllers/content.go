package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandgallery/sandgallery-backend/api/responses"
	"github.com/sandgallery/sandgallery-backend/internal/content"
	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
)

type contentListResponse struct {
	Type  string               `json:"type"`
	Items []models.ContentItem `json:"items"`
}

// ContentList serves the public gallery items for one content type.
func ContentList(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "content service unavailable"))
			return
		}

		kind := chi.URLParam(r, "type")
		items, err := svc.List(r.Context(), kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if items == nil {
			items = []models.ContentItem{}
		}
		responses.WriteSuccess(w, contentListResponse{Type: kind, Items: items})
	}
}

// AdminContentBootstrap seeds the gallery documents that are still empty.
func AdminContentBootstrap(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "content service unavailable"))
			return
		}

		report, err := svc.Bootstrap(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
