package providers

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultTextModel         = "google/gemini-2.0-flash-001"
	openRouterReferer        = "https://sand.gallery"
	openRouterTitle          = "Sand.Gallery"
)

// Completion is one chat completion request.
type Completion struct {
	Model  string
	System string
	Prompt string
}

// TextCompleter is the text surface shared by the gateway, admin chat and the
// automation worker.
type TextCompleter interface {
	Complete(ctx context.Context, in Completion) (string, error)
}

// OpenRouter speaks the OpenAI chat completions protocol against OpenRouter.
type OpenRouter struct {
	apiKey       string
	defaultModel string
	client       openai.Client
}

var (
	_ Backend       = (*OpenRouter)(nil)
	_ TextCompleter = (*OpenRouter)(nil)
)

func NewOpenRouter(apiKey, baseURL, defaultModel string, opts ...Option) *OpenRouter {
	o := buildHTTPOptions(opts)
	apiKey = strings.TrimSpace(apiKey)
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	if strings.TrimSpace(defaultModel) == "" {
		defaultModel = DefaultTextModel
	}
	return &OpenRouter{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client: openai.NewClient(sdkOptions(apiKey, baseURL, o,
			option.WithHeader("HTTP-Referer", openRouterReferer),
			option.WithHeader("X-Title", openRouterTitle),
		)...),
	}
}

func (o *OpenRouter) Generate(ctx context.Context, req Request) (*Result, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = o.defaultModel
	}
	text, err := o.Complete(ctx, Completion{Model: model, Prompt: req.Prompt})
	if err != nil {
		return nil, err
	}
	return &Result{Provider: ProviderOpenRouter, Model: model, Text: text}, nil
}

func (o *OpenRouter) Complete(ctx context.Context, in Completion) (string, error) {
	if o.apiKey == "" {
		return "", pkgerrors.New(pkgerrors.CodeMissingCredential, "openrouter api key not configured")
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
	}
	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = o.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if in.System != "" {
		messages = append(messages, openai.SystemMessage(in.System))
	}
	messages = append(messages, openai.UserMessage(in.Prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		return "", sdkError(ProviderOpenRouter, err)
	}
	if len(resp.Choices) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeProvider, "openrouter: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
