package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/sandgallery/sandgallery-backend/api/middleware"
	"github.com/sandgallery/sandgallery-backend/api/responses"
	"github.com/sandgallery/sandgallery-backend/api/validators"
	"github.com/sandgallery/sandgallery-backend/internal/generation"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
)

type imageRequest struct {
	Prompt      string         `json:"prompt" validate:"required,max=4000"`
	Provider    string         `json:"provider" validate:"max=32"`
	Model       string         `json:"model" validate:"max=200"`
	Version     string         `json:"version" validate:"max=200"`
	AspectRatio string         `json:"aspectRatio" validate:"max=16"`
	Options     map[string]any `json:"options"`
}

func (r imageRequest) toRequest() generation.Request {
	return generation.Request{
		Prompt:      strings.TrimSpace(r.Prompt),
		Provider:    strings.ToLower(strings.TrimSpace(r.Provider)),
		Model:       strings.TrimSpace(r.Model),
		Version:     strings.TrimSpace(r.Version),
		AspectRatio: strings.TrimSpace(r.AspectRatio),
		Options:     r.Options,
	}
}

type textRequest struct {
	Prompt string `json:"prompt" validate:"required,max=16000"`
	Model  string `json:"model" validate:"max=200"`
}

func (r textRequest) toRequest() generation.Request {
	return generation.Request{Prompt: strings.TrimSpace(r.Prompt), Model: strings.TrimSpace(r.Model)}
}

type videoRequest struct {
	StoragePath string `json:"storagePath" validate:"required,max=1024"`
	Model       string `json:"model" validate:"max=200"`
	Perspective string `json:"perspective"`
	Harshness   string `json:"harshness"`
}

func (r videoRequest) toRequest() generation.Request {
	return generation.Request{
		StoragePath: strings.TrimSpace(r.StoragePath),
		Model:       strings.TrimSpace(r.Model),
		Perspective: strings.TrimSpace(r.Perspective),
		Harshness:   strings.TrimSpace(r.Harshness),
	}
}

type gatewayCall func(ctx context.Context, caller generation.Caller, req generation.Request) (*generation.Response, error)

func GenerateImage(gw generation.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation gateway unavailable"))
			return
		}
		var body imageRequest
		serveGeneration(w, r, logg, &body, func() generation.Request { return body.toRequest() }, gw.GenerateImage)
	}
}

func GenerateText(gw generation.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation gateway unavailable"))
			return
		}
		var body textRequest
		serveGeneration(w, r, logg, &body, func() generation.Request { return body.toRequest() }, gw.GenerateText)
	}
}

func AnalyzeVideo(gw generation.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation gateway unavailable"))
			return
		}
		var body videoRequest
		serveGeneration(w, r, logg, &body, func() generation.Request { return body.toRequest() }, gw.AnalyzeVideo)
	}
}

// serveGeneration decodes dest, builds the gateway request after decoding and
// renders the typed result.
func serveGeneration(w http.ResponseWriter, r *http.Request, logg *logger.Logger, dest any, build func() generation.Request, call gatewayCall) {
	if err := validators.DecodeJSONBody(w, r, dest); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	caller := generation.Caller{
		UserID: middleware.UserIDFromContext(r.Context()),
		Email:  middleware.EmailFromContext(r.Context()),
	}
	resp, err := call(r.Context(), caller, build())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, resp)
}
