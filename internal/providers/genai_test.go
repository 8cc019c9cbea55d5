package providers

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

type fakeGenerator struct {
	calls   int
	model   string
	config  *genai.GenerateContentConfig
	prompt  string
	respond func() (*genai.GenerateContentResponse, error)
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.config = config
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.Text != "" {
				f.prompt = p.Text
			}
		}
	}
	return f.respond()
}

type fakeFiles struct {
	states       []genai.FileState
	gets         int
	uploadedPath string
}

func (f *fakeFiles) UploadFromPath(_ context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error) {
	f.uploadedPath = path
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &genai.File{Name: "files/abc", URI: "https://generativelanguage.example/files/abc", MIMEType: config.MIMEType, State: f.states[0]}, nil
}

func (f *fakeFiles) Get(_ context.Context, name string, _ *genai.GetFileConfig) (*genai.File, error) {
	f.gets++
	state := f.states[len(f.states)-1]
	if f.gets < len(f.states) {
		state = f.states[f.gets]
	}
	return &genai.File{Name: name, URI: "https://generativelanguage.example/" + name, MIMEType: "video/mp4", State: state}, nil
}

type videoStore struct{}

func (videoStore) Put(context.Context, storage.Object) error { return nil }
func (videoStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	if path == "uploads/missing.mp4" {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader([]byte("fake-mp4-bytes"))), nil
}
func (videoStore) Bucket() string             { return "bucket" }
func (videoStore) Ping(context.Context) error { return nil }

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
	}}}
}

func TestGeminiImageModelTableAndAspectPrefix(t *testing.T) {
	gen := &fakeGenerator{respond: func() (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here you go"},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("png")}},
			}},
		}}}, nil
	}}
	backend := NewGeminiImages(&GenAISession{models: gen})

	res, err := backend.Generate(context.Background(), Request{
		Model: "nano-banana-pro", Prompt: "a lighthouse", AspectRatio: "3:4",
		Options: map[string]any{"thinking": true},
	})
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,cG5n", res.Ref)
	require.Equal(t, "gemini-3-pro-image-preview", gen.model)
	require.Equal(t, "Aspect ratio 3:4. a lighthouse", gen.prompt)
	require.Equal(t, []string{"IMAGE", "TEXT"}, gen.config.ResponseModalities)
	require.Len(t, gen.config.SafetySettings, 4)
	for _, s := range gen.config.SafetySettings {
		require.Equal(t, genai.HarmBlockThresholdBlockNone, s.Threshold)
	}
	require.Nil(t, gen.config.SystemInstruction)
	require.Equal(t, genai.FunctionCallingConfigModeNone, gen.config.ToolConfig.FunctionCallingConfig.Mode)
	require.NotNil(t, gen.config.ThinkingConfig)
	require.True(t, gen.config.ThinkingConfig.IncludeThoughts)
}

func TestGeminiImagePassThroughModel(t *testing.T) {
	gen := &fakeGenerator{respond: func() (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: []byte("j")}}}},
		}}}, nil
	}}
	_, err := NewGeminiImages(&GenAISession{models: gen}).Generate(context.Background(), Request{Model: "gemini-custom", Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "gemini-custom", gen.model)
	require.Empty(t, gen.config.SafetySettings)
	require.Equal(t, "p", gen.prompt)
}

func TestGeminiImageNoImageTruncatesText(t *testing.T) {
	long := strings.Repeat("r", 500)
	gen := &fakeGenerator{respond: func() (*genai.GenerateContentResponse, error) { return textResponse(long), nil }}

	_, err := NewGeminiImages(&GenAISession{models: gen}).Generate(context.Background(), Request{Model: "nano-banana", Prompt: "p"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoImageReturned), "got %v", err)
	msg := pkgerrors.As(err).Message()
	require.Contains(t, msg, strings.Repeat("r", 200))
	require.NotContains(t, msg, strings.Repeat("r", 201))
}

func TestGeminiMissingKey(t *testing.T) {
	_, err := NewGeminiImages(NewGenAISession("")).Generate(context.Background(), Request{Prompt: "p"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingCredential), "got %v", err)
}

func newTestAnalyzer(t *testing.T, gen *fakeGenerator, files *fakeFiles) *VideoAnalyzer {
	t.Helper()
	v, err := NewVideoAnalyzer(VideoParams{
		Session:         &GenAISession{models: gen, files: files},
		Store:           videoStore{},
		PollInterval:    1,
		MaxPollAttempts: 3,
		TempDir:         t.TempDir(),
	})
	require.NoError(t, err)
	return v
}

func TestVideoRemoteFailureSkipsAnalysisAndCleansUp(t *testing.T) {
	gen := &fakeGenerator{respond: func() (*genai.GenerateContentResponse, error) { return textResponse("{}"), nil }}
	files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing, genai.FileStateProcessing, genai.FileStateFailed}}

	_, err := newTestAnalyzer(t, gen, files).Generate(context.Background(), Request{
		Kind: enums.GenerationKindVideoAnalysis, StoragePath: "uploads/u1/clip.mp4",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRemoteProcessingFailed), "got %v", err)
	require.Zero(t, gen.calls)
	require.NotEmpty(t, files.uploadedPath)
	_, statErr := os.Stat(files.uploadedPath)
	require.True(t, os.IsNotExist(statErr), "temp file should be removed")
}

func TestVideoStillProcessingAfterBudget(t *testing.T) {
	gen := &fakeGenerator{respond: func() (*genai.GenerateContentResponse, error) { return textResponse("{}"), nil }}
	files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing}}

	_, err := newTestAnalyzer(t, gen, files).Generate(context.Background(), Request{StoragePath: "uploads/u1/clip.mp4"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRemoteProcessingFailed), "got %v", err)
	require.Equal(t, 3, files.gets)
	require.Zero(t, gen.calls)
}

func TestVideoAnalysisParsesFencedJSONAndClamps(t *testing.T) {
	body := "```json\n" + `{"scores":{"editing":120,"fx":-4,"pacing":71.6,"storytelling":50,"quality":88},
"critiques":{"editing":"tight","fx":"sparse","pacing":"brisk","storytelling":"clear","quality":"crisp"},
"reasoning":"solid short"}` + "\n```"
	gen := &fakeGenerator{respond: func() (*genai.GenerateContentResponse, error) { return textResponse(body), nil }}
	files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing, genai.FileStateActive}}

	res, err := newTestAnalyzer(t, gen, files).Generate(context.Background(), Request{
		StoragePath: "uploads/u1/clip.mp4", Perspective: enums.PerspectiveCritic, Harshness: enums.HarshnessBrutal,
	})
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls)
	require.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.SystemInstruction)

	a := res.Analysis
	require.Equal(t, 100, a.Scores.Editing)
	require.Equal(t, 0, a.Scores.FX)
	require.Equal(t, 72, a.Scores.Pacing)
	require.Equal(t, "brisk", a.Critiques.Pacing)
	require.Equal(t, "solid short", a.Reasoning)
	require.Equal(t, enums.PerspectiveCritic, a.Perspective)
	require.Equal(t, DefaultVideoModel, a.Model)

	_, statErr := os.Stat(files.uploadedPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestVideoMalformedResponse(t *testing.T) {
	gen := &fakeGenerator{respond: func() (*genai.GenerateContentResponse, error) { return textResponse("the video is nice"), nil }}
	files := &fakeFiles{states: []genai.FileState{genai.FileStateActive}}

	_, err := newTestAnalyzer(t, gen, files).Generate(context.Background(), Request{StoragePath: "uploads/u1/clip.mp4"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMalformedResponse), "got %v", err)
}

func TestVideoMissingObject(t *testing.T) {
	gen := &fakeGenerator{respond: func() (*genai.GenerateContentResponse, error) { return textResponse("{}"), nil }}
	_, err := newTestAnalyzer(t, gen, &fakeFiles{states: []genai.FileState{genai.FileStateActive}}).
		Generate(context.Background(), Request{StoragePath: "uploads/missing.mp4"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestStripFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}```"))
	require.Equal(t, `{"a":1}`, StripFences(` {"a":1} `))
}
