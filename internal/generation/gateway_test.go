package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/internal/artifacts"
	"github.com/sandgallery/sandgallery-backend/internal/credits"
	"github.com/sandgallery/sandgallery-backend/internal/providers"
	"github.com/sandgallery/sandgallery-backend/pkg/db"
	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
	"github.com/sandgallery/sandgallery-backend/pkg/metrics"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

type fakeAdapter struct {
	calls    []providers.Request
	generate func(req providers.Request) (*providers.Result, error)
}

func (f *fakeAdapter) Generate(_ context.Context, req providers.Request) (*providers.Result, error) {
	f.calls = append(f.calls, req)
	return f.generate(req)
}

type memStore struct {
	objects map[string]storage.Object
}

func (m *memStore) Put(_ context.Context, obj storage.Object) error {
	m.objects[obj.Path] = obj
	return nil
}
func (m *memStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}
func (m *memStore) Bucket() string             { return "sand-gallery" }
func (m *memStore) Ping(context.Context) error { return nil }

type harness struct {
	gateway Gateway
	adapter *fakeAdapter
	conn    *gorm.DB
	store   *memStore
}

func newHarness(t *testing.T, adapter *fakeAdapter) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.Account{}, &models.CreditTransaction{}, &models.Creation{}, &models.VideoAnalysis{}))

	tx := db.FromConn(conn)
	ledger, err := credits.NewService(credits.ServiceParams{Repo: credits.NewRepository(conn), Tx: tx, SignupCredits: 10})
	require.NoError(t, err)

	store := &memStore{objects: map[string]storage.Object{}}
	persist, err := artifacts.NewService(artifacts.ServiceParams{
		Repo:          artifacts.NewRepository(conn),
		Tx:            tx,
		Store:         store,
		PublicBaseURL: "https://firebasestorage.googleapis.com",
		QuotaBytes:    50 << 20,
	})
	require.NoError(t, err)

	gw, err := NewGateway(GatewayParams{
		Ledger:    ledger,
		Artifacts: persist,
		Adapter:   adapter,
		Metrics:   metrics.NewGenerationMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return &harness{gateway: gw, adapter: adapter, conn: conn, store: store}
}

func (h *harness) seed(t *testing.T, id string, balance int) {
	t.Helper()
	require.NoError(t, h.conn.Create(&models.Account{ID: id, Credits: balance, Role: enums.AccountRoleStandard}).Error)
}

func (h *harness) balance(t *testing.T, id string) int {
	t.Helper()
	var account models.Account
	require.NoError(t, h.conn.Where("id = ?", id).Take(&account).Error)
	return account.Credits
}

func imageAdapter() *fakeAdapter {
	return &fakeAdapter{generate: func(req providers.Request) (*providers.Result, error) {
		return &providers.Result{Provider: req.Provider, Model: req.Model, Ref: "data:image/png;base64,aW1hZ2U="}, nil
	}}
}

func TestGenerateImageChargesOneAndRecordsCreation(t *testing.T) {
	h := newHarness(t, imageAdapter())
	h.seed(t, "u1", 5)

	resp, err := h.gateway.GenerateImage(context.Background(), Caller{UserID: "u1"}, Request{Prompt: "sand dunes"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Cost)
	require.Equal(t, 4, resp.Balance)
	require.Equal(t, 4, h.balance(t, "u1"))
	require.Len(t, h.store.objects, 1)

	var creations []models.Creation
	require.NoError(t, h.conn.Find(&creations).Error)
	require.Len(t, creations, 1)
	require.Equal(t, 1, creations[0].Cost)
	require.Equal(t, resp.URL, creations[0].URL)
}

func TestGenerateImageZeroBalanceNeverCallsProvider(t *testing.T) {
	h := newHarness(t, imageAdapter())
	h.seed(t, "u1", 0)

	_, err := h.gateway.GenerateImage(context.Background(), Caller{UserID: "u1"}, Request{Prompt: "sand dunes"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientCredits), "got %v", err)
	require.Empty(t, h.adapter.calls)
	require.Empty(t, h.store.objects)
}

func TestGenerateImageChargeKeptOnProviderFailure(t *testing.T) {
	adapter := &fakeAdapter{generate: func(providers.Request) (*providers.Result, error) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProvider, errors.New("upstream 500"), "replicate")
	}}
	h := newHarness(t, adapter)
	h.seed(t, "u1", 5)

	_, err := h.gateway.GenerateImage(context.Background(), Caller{UserID: "u1"}, Request{Prompt: "x", Provider: "openai"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProvider), "got %v", err)
	require.Equal(t, 1, h.balance(t, "u1"))
	require.Len(t, adapter.calls, 1)
	require.Equal(t, providers.ProviderOpenAI, adapter.calls[0].Provider)
}

func TestGenerateImageUnknownProviderChargesNothing(t *testing.T) {
	h := newHarness(t, imageAdapter())
	h.seed(t, "u1", 5)

	_, err := h.gateway.GenerateImage(context.Background(), Caller{UserID: "u1"}, Request{Prompt: "sand dunes", Provider: "replicat"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	require.Equal(t, 5, h.balance(t, "u1"))
	require.Empty(t, h.adapter.calls)
	require.Empty(t, h.store.objects)

	var journal int64
	require.NoError(t, h.conn.Model(&models.CreditTransaction{}).Count(&journal).Error)
	require.Zero(t, journal)
}

func TestGenerateRejectsUnauthenticatedAndEmptyPrompt(t *testing.T) {
	h := newHarness(t, imageAdapter())
	h.seed(t, "u1", 5)

	_, err := h.gateway.GenerateText(context.Background(), Caller{}, Request{Prompt: "hi"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "got %v", err)

	_, err = h.gateway.GenerateImage(context.Background(), Caller{UserID: "u1"}, Request{Prompt: "   "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = h.gateway.AnalyzeVideo(context.Background(), Caller{UserID: "u1"}, Request{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	require.Empty(t, h.adapter.calls)
	require.Equal(t, 5, h.balance(t, "u1"))
}

func TestGenerateTextReturnsDirectly(t *testing.T) {
	adapter := &fakeAdapter{generate: func(req providers.Request) (*providers.Result, error) {
		return &providers.Result{Provider: providers.ProviderOpenRouter, Model: "m", Text: "a haiku"}, nil
	}}
	h := newHarness(t, adapter)
	h.seed(t, "u1", 2)

	resp, err := h.gateway.GenerateText(context.Background(), Caller{UserID: "u1"}, Request{Prompt: "write a haiku"})
	require.NoError(t, err)
	require.Equal(t, "a haiku", resp.Text)
	require.Equal(t, 1, resp.Balance)

	var count int64
	require.NoError(t, h.conn.Model(&models.Creation{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAnalyzeVideoPersistsAnalysis(t *testing.T) {
	adapter := &fakeAdapter{generate: func(req providers.Request) (*providers.Result, error) {
		return &providers.Result{Provider: providers.ProviderGemini, Model: "gemini-2.5-pro", Analysis: &providers.VideoAnalysis{
			Scores:      models.VideoScores{Editing: 80, FX: 60, Pacing: 70, Storytelling: 90, Quality: 75},
			Reasoning:   "good",
			Model:       "gemini-2.5-pro",
			Perspective: req.Perspective,
			Harshness:   req.Harshness,
		}}, nil
	}}
	h := newHarness(t, adapter)
	h.seed(t, "u1", 12)

	resp, err := h.gateway.AnalyzeVideo(context.Background(), Caller{UserID: "u1"}, Request{
		StoragePath: "uploads/u1/clip.mp4", Perspective: "editor",
	})
	require.NoError(t, err)
	require.Equal(t, 10, resp.Cost)
	require.Equal(t, 2, resp.Balance)
	require.Equal(t, "uploads/u1/clip.mp4", resp.URL)
	require.Equal(t, enums.HarshnessBalanced, adapter.calls[0].Harshness)

	var stored models.VideoAnalysis
	require.NoError(t, h.conn.Take(&stored).Error)
	require.Equal(t, 90, stored.Scores.Data().Storytelling)
	require.Equal(t, enums.PerspectiveEditor, stored.Perspective)
}

func TestCostTable(t *testing.T) {
	cases := []struct {
		kind     enums.GenerationKind
		provider string
		model    string
		want     int
	}{
		{enums.GenerationKindText, providers.ProviderOpenRouter, "", 1},
		{enums.GenerationKindImage, providers.ProviderReplicate, "black-forest-labs/flux-schnell", 1},
		{enums.GenerationKindImage, providers.ProviderReplicate, "black-forest-labs/flux-1.1-pro", 2},
		{enums.GenerationKindImage, providers.ProviderGemini, "nano-banana-pro", 2},
		{enums.GenerationKindImage, providers.ProviderGemini, "nano-banana", 1},
		{enums.GenerationKindImage, providers.ProviderReplicate, "acme/flux-improved", 1},
		{enums.GenerationKindImage, providers.ProviderReplicate, "acme/prompt-studio", 1},
		{enums.GenerationKindImage, providers.ProviderReplicate, "acme/pro:3f2a", 2},
		{enums.GenerationKindImage, providers.ProviderOpenAI, "dall-e-3", 4},
		{enums.GenerationKindVideoAnalysis, providers.ProviderGemini, "", 10},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Cost(tc.kind, tc.provider, tc.model), "%s/%s/%s", tc.kind, tc.provider, tc.model)
	}
}
