package providers

import (
	"context"
	"strings"

	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

const (
	ProviderReplicate  = "replicate"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"

	DefaultImageModel = "black-forest-labs/flux-schnell"
)

// Request is the single shape every backend accepts.
type Request struct {
	Kind        enums.GenerationKind
	Provider    string
	Model       string
	Version     string
	Prompt      string
	AspectRatio string
	Options     map[string]any

	StoragePath string
	Perspective enums.Perspective
	Harshness   enums.Harshness
}

// Result carries exactly one of Ref (image), Text or Analysis.
type Result struct {
	Provider string
	Model    string
	Ref      string
	Text     string
	Analysis *VideoAnalysis
}

// VideoAnalysis is the parsed rubric returned by the analysis model.
type VideoAnalysis struct {
	Scores      models.VideoScores
	Critiques   models.VideoCritiques
	Reasoning   string
	Model       string
	Perspective enums.Perspective
	Harshness   enums.Harshness
}

// Backend is implemented by each third-party integration.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Adapter dispatches a Request to the backend serving its kind and provider.
type Adapter interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

type RouterParams struct {
	Replicate  Backend
	OpenAI     Backend
	Gemini     Backend
	OpenRouter Backend
	Video      Backend
}

type Router struct {
	images map[string]Backend
	text   Backend
	video  Backend
}

var _ Adapter = (*Router)(nil)

func NewRouter(params RouterParams) *Router {
	images := map[string]Backend{}
	if params.Replicate != nil {
		images[ProviderReplicate] = params.Replicate
	}
	if params.OpenAI != nil {
		images[ProviderOpenAI] = params.OpenAI
	}
	if params.Gemini != nil {
		images[ProviderGemini] = params.Gemini
	}
	return &Router{images: images, text: params.OpenRouter, video: params.Video}
}

func (r *Router) Generate(ctx context.Context, req Request) (*Result, error) {
	var backend Backend
	switch req.Kind {
	case enums.GenerationKindText:
		backend = r.text
	case enums.GenerationKindVideoAnalysis:
		backend = r.video
	case enums.GenerationKindImage:
		req.Provider = ResolveImageProvider(req.Provider, req.Model)
		backend = r.images[req.Provider]
		if backend == nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown image provider %q", req.Provider)
		}
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown generation kind %q", req.Kind)
	}
	if backend == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeMissingCredential, "no backend configured for %s", req.Kind)
	}
	return backend.Generate(ctx, req)
}

// ResolveImageProvider picks the backend for an image request. Gemini table
// models route to gemini when no provider is named.
func ResolveImageProvider(provider, model string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != "" {
		return provider
	}
	if _, ok := geminiModels[strings.TrimSpace(model)]; ok {
		return ProviderGemini
	}
	return ProviderReplicate
}

// KnownImageProvider reports whether name is one of the image backends.
func KnownImageProvider(name string) bool {
	switch name {
	case ProviderReplicate, ProviderOpenAI, ProviderGemini:
		return true
	}
	return false
}
