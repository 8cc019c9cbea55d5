package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "dall-e-3"
)

// OpenAIImages calls an OpenAI-compatible images/generations endpoint.
type OpenAIImages struct {
	apiKey string
	client openai.Client
}

func NewOpenAIImages(apiKey, baseURL string, opts ...Option) *OpenAIImages {
	o := buildHTTPOptions(opts)
	apiKey = strings.TrimSpace(apiKey)
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIImages{
		apiKey: apiKey,
		client: openai.NewClient(sdkOptions(apiKey, baseURL, o)...),
	}
}

func (o *OpenAIImages) Generate(ctx context.Context, req Request) (*Result, error) {
	if o.apiKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingCredential, "openai api key not configured")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = defaultOpenAIModel
	}

	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.ImageModel(model),
		Prompt: req.Prompt,
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize(imageSize(req.AspectRatio)),
	})
	if err != nil {
		return nil, sdkError(ProviderOpenAI, err)
	}
	if len(resp.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "openai returned no images")
	}

	first := resp.Data[0]
	ref := first.URL
	if ref == "" && first.B64JSON != "" {
		ref = "data:image/png;base64," + first.B64JSON
	}
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "openai image had neither url nor b64_json")
	}
	return &Result{Provider: ProviderOpenAI, Model: model, Ref: ref}, nil
}

// imageSize maps an aspect ratio onto the three sizes the endpoint accepts.
func imageSize(aspectRatio string) string {
	switch strings.TrimSpace(aspectRatio) {
	case "16:9", "3:2", "4:3", "21:9":
		return "1792x1024"
	case "9:16", "2:3", "3:4", "9:21":
		return "1024x1792"
	default:
		return "1024x1024"
	}
}

// sdkOptions configures an openai-go client for any OpenAI-compatible host.
// Retries stay off: the request was already charged and a retry could bill the
// upstream twice.
func sdkOptions(apiKey, baseURL string, o httpOptions, extra ...option.RequestOption) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		option.WithHTTPClient(o.client),
		option.WithMaxRetries(0),
	}
	return append(opts, extra...)
}

// sdkError maps an openai-go failure onto CodeProvider with the upstream
// message and status.
func sdkError(provider string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.Wrap(pkgerrors.CodeProvider, err, provider+" request cancelled")
		}
		return pkgerrors.Wrap(pkgerrors.CodeProvider, err, provider+" request failed")
	}
	msg := apiErr.Message
	if msg == "" {
		msg = errorMessage([]byte(apiErr.RawJSON()))
	}
	if msg == "" {
		msg = http.StatusText(apiErr.StatusCode)
	}
	return pkgerrors.Newf(pkgerrors.CodeProvider, "%s: %s", provider, msg).
		WithDetails(map[string]any{"provider": provider, "status": apiErr.StatusCode})
}
