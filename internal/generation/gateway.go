package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/sandgallery/sandgallery-backend/internal/artifacts"
	"github.com/sandgallery/sandgallery-backend/internal/credits"
	"github.com/sandgallery/sandgallery-backend/internal/providers"
	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/metrics"
)

const (
	OperationGenerateImage = "generate_image"
	OperationGenerateText  = "generate_text"
	OperationAnalyzeVideo  = "analyze_video"
)

// Request stages, logged under the stage field.
const (
	StageUnauthenticated   = "unauthenticated"
	StageAuthenticated     = "authenticated"
	StageCreditsChecked    = "credits_checked"
	StageProviderInvoked   = "provider_invoked"
	StageArtifactPersisted = "artifact_persisted"
	StageTextReturned      = "text_returned"
	StageCompleted         = "completed"
	StageFailed            = "failed"
)

type ledger interface {
	Deduct(ctx context.Context, userID string, amount int, reason string) (*credits.DeductResult, error)
}

type artifactStore interface {
	Persist(ctx context.Context, userID string, input artifacts.PersistInput) (*artifacts.PersistResult, error)
}

// Caller is the verified identity behind a request.
type Caller struct {
	UserID string
	Email  string
}

// Request carries the union of the three operations' inputs.
type Request struct {
	Prompt      string         `json:"prompt"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	Version     string         `json:"version,omitempty"`
	AspectRatio string         `json:"aspectRatio,omitempty"`
	Options     map[string]any `json:"options,omitempty"`

	StoragePath string `json:"storagePath,omitempty"`
	Perspective string `json:"perspective,omitempty"`
	Harshness   string `json:"harshness,omitempty"`
}

// Response is the data half of the success envelope.
type Response struct {
	Kind     enums.GenerationKind  `json:"kind"`
	Provider string                `json:"provider,omitempty"`
	Model    string                `json:"model,omitempty"`
	URL      string                `json:"url,omitempty"`
	Text     string                `json:"text,omitempty"`
	Analysis *models.VideoAnalysis `json:"analysis,omitempty"`
	Creation *models.Creation      `json:"creation,omitempty"`
	Cost     int                   `json:"cost"`
	Balance  int                   `json:"balance"`
	Bypassed bool                  `json:"bypassed,omitempty"`
}

type Gateway interface {
	GenerateImage(ctx context.Context, caller Caller, req Request) (*Response, error)
	GenerateText(ctx context.Context, caller Caller, req Request) (*Response, error)
	AnalyzeVideo(ctx context.Context, caller Caller, req Request) (*Response, error)
}

type GatewayParams struct {
	Ledger    ledger
	Artifacts artifactStore
	Adapter   providers.Adapter
	Metrics   *metrics.GenerationMetrics
	Logger    *logger.Logger
}

type gateway struct {
	ledger    ledger
	artifacts artifactStore
	adapter   providers.Adapter
	metrics   *metrics.GenerationMetrics
	logg      *logger.Logger
}

func NewGateway(params GatewayParams) (Gateway, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("credit ledger required")
	}
	if params.Artifacts == nil {
		return nil, fmt.Errorf("artifact store required")
	}
	if params.Adapter == nil {
		return nil, fmt.Errorf("provider adapter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &gateway{
		ledger:    params.Ledger,
		artifacts: params.Artifacts,
		adapter:   params.Adapter,
		metrics:   params.Metrics,
		logg:      logg,
	}, nil
}

func (g *gateway) GenerateImage(ctx context.Context, caller Caller, req Request) (*Response, error) {
	return g.run(ctx, OperationGenerateImage, caller, func(ctx context.Context) (*Response, error) {
		prompt := strings.TrimSpace(req.Prompt)
		if prompt == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
		}
		provider := providers.ResolveImageProvider(req.Provider, req.Model)
		if !providers.KnownImageProvider(provider) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown image provider %q", provider)
		}
		cost := Cost(enums.GenerationKindImage, provider, req.Model)

		charge, err := g.charge(ctx, caller, cost, OperationGenerateImage)
		if err != nil {
			return nil, err
		}

		result, err := g.invoke(ctx, providers.Request{
			Kind:        enums.GenerationKindImage,
			Provider:    provider,
			Model:       req.Model,
			Version:     req.Version,
			Prompt:      prompt,
			AspectRatio: req.AspectRatio,
			Options:     req.Options,
		})
		if err != nil {
			return nil, err
		}

		persisted, err := g.artifacts.Persist(ctx, caller.UserID, artifacts.PersistInput{
			Kind:   enums.GenerationKindImage,
			Prompt: prompt,
			Ref:    result.Ref,
			Cost:   cost,
		})
		if err != nil {
			return nil, err
		}
		g.stage(ctx, StageArtifactPersisted)

		return &Response{
			Kind:     enums.GenerationKindImage,
			Provider: result.Provider,
			Model:    result.Model,
			URL:      persisted.URL,
			Creation: persisted.Creation,
			Cost:     cost,
			Balance:  charge.Balance,
			Bypassed: charge.Bypassed,
		}, nil
	})
}

func (g *gateway) GenerateText(ctx context.Context, caller Caller, req Request) (*Response, error) {
	return g.run(ctx, OperationGenerateText, caller, func(ctx context.Context) (*Response, error) {
		prompt := strings.TrimSpace(req.Prompt)
		if prompt == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
		}
		cost := Cost(enums.GenerationKindText, providers.ProviderOpenRouter, req.Model)

		charge, err := g.charge(ctx, caller, cost, OperationGenerateText)
		if err != nil {
			return nil, err
		}

		result, err := g.invoke(ctx, providers.Request{
			Kind:     enums.GenerationKindText,
			Provider: providers.ProviderOpenRouter,
			Model:    req.Model,
			Prompt:   prompt,
		})
		if err != nil {
			return nil, err
		}
		g.stage(ctx, StageTextReturned)

		return &Response{
			Kind:     enums.GenerationKindText,
			Provider: result.Provider,
			Model:    result.Model,
			Text:     result.Text,
			Cost:     cost,
			Balance:  charge.Balance,
			Bypassed: charge.Bypassed,
		}, nil
	})
}

func (g *gateway) AnalyzeVideo(ctx context.Context, caller Caller, req Request) (*Response, error) {
	return g.run(ctx, OperationAnalyzeVideo, caller, func(ctx context.Context) (*Response, error) {
		storagePath := strings.TrimSpace(req.StoragePath)
		if storagePath == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "storagePath is required")
		}
		perspective, err := enums.ParsePerspective(req.Perspective)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid perspective")
		}
		harshness, err := enums.ParseHarshness(req.Harshness)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid harshness")
		}
		cost := Cost(enums.GenerationKindVideoAnalysis, providers.ProviderGemini, req.Model)

		charge, err := g.charge(ctx, caller, cost, OperationAnalyzeVideo)
		if err != nil {
			return nil, err
		}

		result, err := g.invoke(ctx, providers.Request{
			Kind:        enums.GenerationKindVideoAnalysis,
			Provider:    providers.ProviderGemini,
			Model:       req.Model,
			Prompt:      req.Prompt,
			StoragePath: storagePath,
			Perspective: perspective,
			Harshness:   harshness,
		})
		if err != nil {
			return nil, err
		}
		if result.Analysis == nil {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "provider returned no analysis")
		}

		row := &models.VideoAnalysis{
			StoragePath: storagePath,
			Harshness:   result.Analysis.Harshness,
			Perspective: result.Analysis.Perspective,
			Scores:      datatypes.NewJSONType(result.Analysis.Scores),
			Critiques:   datatypes.NewJSONType(result.Analysis.Critiques),
			Reasoning:   result.Analysis.Reasoning,
			Model:       result.Analysis.Model,
		}
		persisted, err := g.artifacts.Persist(ctx, caller.UserID, artifacts.PersistInput{
			Kind:     enums.GenerationKindVideoAnalysis,
			Prompt:   req.Prompt,
			Ref:      storagePath,
			Cost:     cost,
			Analysis: row,
		})
		if err != nil {
			return nil, err
		}
		g.stage(ctx, StageArtifactPersisted)

		return &Response{
			Kind:     enums.GenerationKindVideoAnalysis,
			Provider: result.Provider,
			Model:    result.Model,
			URL:      persisted.URL,
			Analysis: row,
			Creation: persisted.Creation,
			Cost:     cost,
			Balance:  charge.Balance,
			Bypassed: charge.Bypassed,
		}, nil
	})
}

// run applies the shared authentication, logging and metrics envelope.
func (g *gateway) run(ctx context.Context, operation string, caller Caller, fn func(context.Context) (*Response, error)) (*Response, error) {
	ctx = g.logg.WithOperation(ctx, operation)

	if strings.TrimSpace(caller.UserID) == "" {
		g.stage(ctx, StageUnauthenticated)
		err := pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
		g.fail(ctx, operation, err)
		return nil, err
	}
	ctx = g.logg.WithUserID(ctx, caller.UserID)
	g.stage(ctx, StageAuthenticated)

	resp, err := fn(ctx)
	if err != nil {
		g.fail(ctx, operation, err)
		return nil, err
	}
	g.stage(ctx, StageCompleted)
	g.metrics.ObserveRequest(operation, metrics.OutcomeSuccess)
	return resp, nil
}

func (g *gateway) charge(ctx context.Context, caller Caller, cost int, operation string) (*credits.DeductResult, error) {
	charge, err := g.ledger.Deduct(ctx, caller.UserID, cost, operation)
	if err != nil {
		return nil, err
	}
	g.metrics.AddCredits(operation, charge.Charged)
	g.stage(g.logg.WithFields(ctx, map[string]any{"cost": cost, "bypassed": charge.Bypassed}), StageCreditsChecked)
	return charge, nil
}

func (g *gateway) invoke(ctx context.Context, req providers.Request) (*providers.Result, error) {
	start := time.Now()
	result, err := g.adapter.Generate(ctx, req)
	g.metrics.ObserveProvider(req.Provider, string(req.Kind), time.Since(start))
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "provider returned no result")
	}
	g.stage(g.logg.WithField(ctx, "provider", result.Provider), StageProviderInvoked)
	return result, nil
}

func (g *gateway) stage(ctx context.Context, stage string) {
	g.logg.Info(g.logg.WithField(ctx, "stage", stage), "generation.stage")
}

func (g *gateway) fail(ctx context.Context, operation string, err error) {
	code := pkgerrors.CodeOf(err)
	g.metrics.ObserveRequest(operation, string(code))
	ctx = g.logg.WithFields(ctx, map[string]any{"stage": StageFailed, "failure": string(code)})
	if pkgerrors.MetadataFor(code).HTTPStatus >= 500 {
		g.logg.Error(ctx, "generation.failed", err)
		return
	}
	g.logg.Warn(ctx, "generation.failed")
}
