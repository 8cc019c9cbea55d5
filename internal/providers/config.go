package providers

import (
	"fmt"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

// Stack is every backend built from configuration. Backends whose key is
// missing are still constructed and fail per call with MISSING_CREDENTIAL.
type Stack struct {
	Router *Router
	Text   *OpenRouter
}

func NewStack(cfg config.ProvidersConfig, video config.VideoConfig, store storage.BlobStore, logg *logger.Logger) (*Stack, error) {
	opts := []Option{WithTimeout(cfg.HTTPTimeout)}
	text := NewOpenRouter(cfg.OpenRouterKey, cfg.OpenRouterURL, cfg.DefaultTextModel, opts...)
	session := NewGenAISession(cfg.GeminiKey)

	analyzer, err := NewVideoAnalyzer(VideoParams{
		Session:         session,
		Store:           store,
		Model:           video.Model,
		PollInterval:    video.PollInterval,
		MaxPollAttempts: video.MaxPollAttempts,
		Logger:          logg,
	})
	if err != nil {
		return nil, fmt.Errorf("video analyzer: %w", err)
	}

	router := NewRouter(RouterParams{
		Replicate:  NewReplicate(cfg.ReplicateToken, cfg.ReplicateBaseURL, opts...),
		OpenAI:     NewOpenAIImages(cfg.OpenAIKey, cfg.OpenAIBaseURL, opts...),
		Gemini:     NewGeminiImages(session),
		OpenRouter: text,
		Video:      analyzer,
	})
	return &Stack{Router: router, Text: text}, nil
}
