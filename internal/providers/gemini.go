package providers

import (
	"context"
	"encoding/base64"
	"strings"

	"google.golang.org/genai"

	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

const noImageTextLimit = 200

type geminiModel struct {
	ID         string
	Modalities []string
	Thinking   bool
	Overrides  bool
}

// geminiModels maps public model ids to the Gemini model and its call shape.
// Ids not listed pass through with the default config.
var geminiModels = map[string]geminiModel{
	"nano-banana": {
		ID:         "gemini-2.5-flash-image",
		Modalities: []string{string(genai.ModalityImage)},
		Overrides:  true,
	},
	"nano-banana-pro": {
		ID:         "gemini-3-pro-image-preview",
		Modalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
		Thinking:   true,
		Overrides:  true,
	},
}

var blockNoneCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// GeminiImages generates images through the genai SDK.
type GeminiImages struct {
	session *GenAISession
}

func NewGeminiImages(session *GenAISession) *GeminiImages {
	return &GeminiImages{session: session}
}

func (g *GeminiImages) Generate(ctx context.Context, req Request) (*Result, error) {
	generator, _, err := g.session.clients(ctx)
	if err != nil {
		return nil, err
	}

	modelID, config := geminiConfig(req)
	prompt := req.Prompt
	if req.AspectRatio != "" {
		prompt = "Aspect ratio " + req.AspectRatio + ". " + prompt
	}

	resp, err := generator.GenerateContent(ctx, modelID, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, config)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "gemini generate content")
	}

	ref, text := extractImage(resp)
	if ref == "" {
		msg := "gemini returned no image"
		if text != "" {
			msg += ": " + truncate(text, noImageTextLimit)
		}
		return nil, pkgerrors.New(pkgerrors.CodeNoImageReturned, msg)
	}
	return &Result{Provider: ProviderGemini, Model: modelID, Ref: ref}, nil
}

func geminiConfig(req Request) (string, *genai.GenerateContentConfig) {
	entry, ok := geminiModels[strings.TrimSpace(req.Model)]
	if !ok {
		return req.Model, &genai.GenerateContentConfig{}
	}

	config := &genai.GenerateContentConfig{ResponseModalities: entry.Modalities}
	if entry.Overrides {
		for _, category := range blockNoneCategories {
			config.SafetySettings = append(config.SafetySettings, &genai.SafetySetting{
				Category:  category,
				Threshold: genai.HarmBlockThresholdBlockNone,
			})
		}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone},
		}
	}
	if entry.Thinking {
		if thinking, _ := req.Options["thinking"].(bool); thinking {
			config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
		}
	}
	return entry.ID, config
}

// extractImage scans every part of the first candidate. A final image is
// preferred over one emitted as a thought.
func extractImage(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ""
	}
	var (
		thoughtRef string
		texts      []string
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			ref := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data)
			if !part.Thought {
				return ref, ""
			}
			if thoughtRef == "" {
				thoughtRef = ref
			}
			continue
		}
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
	}
	if thoughtRef != "" {
		return thoughtRef, ""
	}
	return "", strings.TrimSpace(strings.Join(texts, " "))
}
