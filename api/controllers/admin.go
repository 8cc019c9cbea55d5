package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sandgallery/sandgallery-backend/api/responses"
	"github.com/sandgallery/sandgallery-backend/api/validators"
	"github.com/sandgallery/sandgallery-backend/internal/admin"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
)

type adminCommandRequest struct {
	Command string          `json:"command" validate:"required"`
	Data    json.RawMessage `json:"data"`
}

// AdminCommand runs one admin command. The result fields are merged into the
// top level of the success envelope next to "success".
func AdminCommand(dispatcher admin.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin dispatcher unavailable"))
			return
		}

		var body adminCommandRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		command := strings.TrimSpace(body.Command)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOperation(ctx, "admin."+command)
		}

		result, err := dispatcher.Dispatch(ctx, command, body.Data)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payload := make(map[string]any, len(result)+1)
		for k, v := range result {
			payload[k] = v
		}
		payload["success"] = true
		responses.WriteJSON(w, http.StatusOK, payload)
	}
}
