package providers

import (
	"context"
	"strings"
	"sync"

	"google.golang.org/genai"

	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// fileService is satisfied by *genai.Files.
type fileService interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
}

// GenAISession lazily builds one genai client so a missing key surfaces at
// call time rather than at boot.
type GenAISession struct {
	apiKey string

	mu     sync.Mutex
	models contentGenerator
	files  fileService
}

func NewGenAISession(apiKey string) *GenAISession {
	return &GenAISession{apiKey: strings.TrimSpace(apiKey)}
}

func (s *GenAISession) clients(ctx context.Context) (contentGenerator, fileService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.models != nil {
		return s.models, s.files, nil
	}
	if s.apiKey == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeMissingCredential, "gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "create gemini client")
	}
	s.models = client.Models
	s.files = client.Files
	return s.models, s.files, nil
}
