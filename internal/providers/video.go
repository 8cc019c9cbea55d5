package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

const (
	DefaultVideoModel       = "gemini-2.5-pro"
	DefaultPollInterval     = 2 * time.Second
	DefaultMaxPollAttempts  = 30
	defaultVideoContentType = "video/mp4"
)

type VideoParams struct {
	Session         *GenAISession
	Store           storage.BlobStore
	Model           string
	PollInterval    time.Duration
	MaxPollAttempts int
	TempDir         string
	Logger          *logger.Logger
}

// VideoAnalyzer uploads a stored video to the Gemini Files API, waits for it
// to become active and asks the model for a rubric scored review.
type VideoAnalyzer struct {
	session      *GenAISession
	store        storage.BlobStore
	model        string
	pollInterval time.Duration
	maxPolls     int
	tempDir      string
	logg         *logger.Logger
}

func NewVideoAnalyzer(params VideoParams) (*VideoAnalyzer, error) {
	if params.Session == nil {
		return nil, fmt.Errorf("genai session required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("blob store required")
	}
	v := &VideoAnalyzer{
		session:      params.Session,
		store:        params.Store,
		model:        params.Model,
		pollInterval: params.PollInterval,
		maxPolls:     params.MaxPollAttempts,
		tempDir:      params.TempDir,
		logg:         params.Logger,
	}
	if v.model == "" {
		v.model = DefaultVideoModel
	}
	if v.pollInterval <= 0 {
		v.pollInterval = DefaultPollInterval
	}
	if v.maxPolls <= 0 {
		v.maxPolls = DefaultMaxPollAttempts
	}
	if v.logg == nil {
		v.logg = logger.Nop()
	}
	return v, nil
}

func (v *VideoAnalyzer) Generate(ctx context.Context, req Request) (*Result, error) {
	storagePath := strings.TrimSpace(req.StoragePath)
	if storagePath == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage path is required")
	}
	perspective, err := enums.ParsePerspective(string(req.Perspective))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid perspective")
	}
	harshness, err := enums.ParseHarshness(string(req.Harshness))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid harshness")
	}

	generator, files, err := v.session.clients(ctx)
	if err != nil {
		return nil, err
	}

	localPath, err := v.download(ctx, storagePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(localPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			v.logg.Warn(v.logg.WithField(ctx, "path", localPath), "video.temp_cleanup_failed")
		}
	}()

	contentType := mime.TypeByExtension(filepath.Ext(storagePath))
	if !strings.HasPrefix(contentType, "video/") {
		contentType = defaultVideoContentType
	}

	file, err := files.UploadFromPath(ctx, localPath, &genai.UploadFileConfig{MIMEType: contentType})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "upload video to gemini")
	}
	file, err = v.awaitActive(ctx, files, file)
	if err != nil {
		return nil, err
	}

	model := v.model
	if req.Model != "" {
		model = req.Model
	}
	prompt := analysisRubric
	if strings.TrimSpace(req.Prompt) != "" {
		prompt += "\n\nCreator notes: " + req.Prompt
	}

	resp, err := generator.GenerateContent(ctx, model, []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analysisInstruction(perspective, harshness), genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "gemini video analysis")
	}

	analysis, err := parseAnalysis(responseText(resp))
	if err != nil {
		return nil, err
	}
	analysis.Model = model
	analysis.Perspective = perspective
	analysis.Harshness = harshness
	return &Result{Provider: ProviderGemini, Model: model, Analysis: analysis}, nil
}

func (v *VideoAnalyzer) download(ctx context.Context, storagePath string) (string, error) {
	rc, err := v.store.Get(ctx, storagePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", pkgerrors.Newf(pkgerrors.CodeNotFound, "video %s not found", storagePath)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "download video")
	}
	defer func() { _ = rc.Close() }()

	tmp, err := os.CreateTemp(v.tempDir, "sg-video-*"+filepath.Ext(storagePath))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create temp file")
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "download video")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close temp file")
	}
	return tmp.Name(), nil
}

func (v *VideoAnalyzer) awaitActive(ctx context.Context, files fileService, file *genai.File) (*genai.File, error) {
	for attempt := 0; ; attempt++ {
		if file == nil {
			return nil, pkgerrors.New(pkgerrors.CodeProvider, "gemini returned no file")
		}
		switch file.State {
		case genai.FileStateFailed:
			return nil, pkgerrors.Newf(pkgerrors.CodeRemoteProcessingFailed, "gemini failed to process %s", file.Name)
		case genai.FileStateProcessing:
		default:
			return file, nil
		}
		if attempt >= v.maxPolls {
			return nil, pkgerrors.Newf(pkgerrors.CodeRemoteProcessingFailed, "%s still processing after %d polls", file.Name, v.maxPolls)
		}

		timer := time.NewTimer(v.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, pkgerrors.Wrap(pkgerrors.CodeRemoteProcessingFailed, ctx.Err(), "video processing wait cancelled")
		case <-timer.C:
		}

		next, err := files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, err, "poll gemini file state")
		}
		file = next
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

type rawScores struct {
	Editing      float64 `json:"editing"`
	FX           float64 `json:"fx"`
	Pacing       float64 `json:"pacing"`
	Storytelling float64 `json:"storytelling"`
	Quality      float64 `json:"quality"`
}

type rawAnalysis struct {
	Scores    *rawScores             `json:"scores"`
	Critiques *models.VideoCritiques `json:"critiques"`
	Reasoning string                 `json:"reasoning"`
}

func parseAnalysis(text string) (*VideoAnalysis, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "analysis response was empty")
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "analysis response is not valid json")
	}
	if raw.Scores == nil || raw.Critiques == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "analysis response missing scores or critiques")
	}
	return &VideoAnalysis{
		Scores: models.VideoScores{
			Editing:      clampScore(raw.Scores.Editing),
			FX:           clampScore(raw.Scores.FX),
			Pacing:       clampScore(raw.Scores.Pacing),
			Storytelling: clampScore(raw.Scores.Storytelling),
			Quality:      clampScore(raw.Scores.Quality),
		},
		Critiques: *raw.Critiques,
		Reasoning: raw.Reasoning,
	}, nil
}

// StripFences removes a surrounding Markdown code fence, with or without a
// language tag.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
