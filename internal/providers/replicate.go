package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/replicate/replicate-go"

	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

const (
	defaultReplicateBaseURL  = "https://api.replicate.com/v1"
	replicateSafetyTolerance = 2
	replicatePollInterval    = time.Second
	replicateMaxPolls        = 60
)

// Replicate runs predictions through replicate-go and waits for the output.
type Replicate struct {
	client       *replicate.Client
	clientErr    error
	pollInterval time.Duration
	maxPolls     int
}

func NewReplicate(token, baseURL string, opts ...Option) *Replicate {
	o := buildHTTPOptions(opts)
	r := &Replicate{pollInterval: replicatePollInterval, maxPolls: replicateMaxPolls}
	token = strings.TrimSpace(token)
	if token == "" {
		return r
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultReplicateBaseURL
	}
	r.client, r.clientErr = replicate.NewClient(
		replicate.WithToken(token),
		replicate.WithBaseURL(strings.TrimRight(baseURL, "/")),
		replicate.WithHTTPClient(o.client),
	)
	return r
}

func (r *Replicate) Generate(ctx context.Context, req Request) (*Result, error) {
	if r.client == nil && r.clientErr == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingCredential, "replicate api token not configured")
	}
	if r.clientErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, r.clientErr, "replicate client")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = DefaultImageModel
	}

	input := replicate.PredictionInput{}
	for k, v := range req.Options {
		input[k] = v
	}
	input["prompt"] = req.Prompt
	input["safety_tolerance"] = replicateSafetyTolerance
	if req.AspectRatio != "" {
		input["aspect_ratio"] = req.AspectRatio
	}

	var (
		prediction *replicate.Prediction
		err        error
	)
	if req.Version != "" {
		prediction, err = r.client.CreatePrediction(ctx, req.Version, input, nil, false)
	} else {
		owner, name, ok := strings.Cut(model, "/")
		if !ok || owner == "" || name == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "replicate model %q must be owner/name", model)
		}
		prediction, err = r.client.CreatePredictionWithModel(ctx, owner, name, input, nil, false)
	}
	if err != nil {
		return nil, replicateError(err)
	}

	if !replicateTerminal(string(prediction.Status)) && outputURL(prediction.Output) == "" {
		waitCtx, cancel := context.WithTimeout(ctx, r.pollInterval*time.Duration(r.maxPolls))
		defer cancel()
		if err := r.client.Wait(waitCtx, prediction, replicate.WithPollingInterval(r.pollInterval)); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, pkgerrors.Newf(pkgerrors.CodeProvider, "replicate prediction %s still %s", prediction.ID, prediction.Status)
			}
			return nil, replicateError(err)
		}
	}

	if msg := predictionError(prediction.Error); msg != "" {
		return nil, pkgerrors.Newf(pkgerrors.CodeProvider, "replicate: %s", msg)
	}
	ref := outputURL(prediction.Output)
	if ref == "" {
		return nil, pkgerrors.Newf(pkgerrors.CodeProvider, "replicate prediction %s returned no output", prediction.ID)
	}
	return &Result{Provider: ProviderReplicate, Model: model, Ref: ref}, nil
}

func replicateTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

func replicateError(err error) error {
	var apiErr *replicate.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Detail
		if msg == "" {
			msg = apiErr.Title
		}
		return pkgerrors.Newf(pkgerrors.CodeProvider, "%s: %s", ProviderReplicate, msg).
			WithDetails(map[string]any{"provider": ProviderReplicate, "status": apiErr.Status})
	}
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "replicate request failed")
}

// outputURL accepts either a bare URL or a list whose first element is one.
func outputURL(output any) string {
	switch v := output.(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func predictionError(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	return truncate(fmt.Sprint(raw), errorBodyPreview)
}
