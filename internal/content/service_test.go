package content

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/pkg/db"
	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
	pkgerrors "github.com/sandgallery/sandgallery-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.ContentDocument{}, &models.SiteConfig{}))

	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Tx: db.FromConn(conn)})
	require.NoError(t, err)
	return svc, conn
}

func TestBootstrapTwiceIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, first.Results[enums.ContentTypeGames])
	require.Equal(t, OutcomeCreated, first.Results[enums.ContentTypeTools])

	second, err := svc.Bootstrap(ctx)
	require.NoError(t, err)
	for _, kind := range enums.ContentTypes {
		require.Equal(t, OutcomeAlreadyExists, second.Results[kind])
		items, err := svc.List(ctx, kind.String())
		require.NoError(t, err)
		require.Len(t, items, seedItemsPerType)
	}
}

func TestBootstrapMergesSiteConfig(t *testing.T) {
	svc, conn := newTestService(t)
	require.NoError(t, conn.Create(&models.SiteConfig{
		Key:  SiteConfigKey,
		Data: datatypes.JSONMap{"maintenance": false, "banner": "welcome"},
	}).Error)

	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)

	var cfg models.SiteConfig
	require.NoError(t, conn.Where(map[string]any{"key": SiteConfigKey}).Take(&cfg).Error)
	require.Equal(t, "welcome", cfg.Data["banner"])
	require.Contains(t, cfg.Data, lastBootstrapField)
}

func TestBootstrapKeepsExistingItems(t *testing.T) {
	svc, conn := newTestService(t)
	require.NoError(t, conn.Create(&models.ContentDocument{
		Key:   enums.ContentTypeGames,
		Items: datatypes.NewJSONSlice([]models.ContentItem{{ID: "custom", Title: "Custom"}}),
	}).Error)

	report, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyExists, report.Results[enums.ContentTypeGames])
	require.Equal(t, OutcomeCreated, report.Results[enums.ContentTypeTools])

	games, err := svc.List(context.Background(), "games")
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.Equal(t, "custom", games[0].ID)
}

func TestListInvalidatedByBootstrap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	before, err := svc.List(ctx, "tools")
	require.NoError(t, err)
	require.Empty(t, before)

	_, err = svc.Bootstrap(ctx)
	require.NoError(t, err)

	after, err := svc.List(ctx, "tools")
	require.NoError(t, err)
	require.Len(t, after, seedItemsPerType)
}

func TestListReturnsIndependentCopies(t *testing.T) {
	svc, conn := newTestService(t)
	rating := 4.5
	require.NoError(t, conn.Create(&models.ContentDocument{
		Key:   enums.ContentTypeGames,
		Items: datatypes.NewJSONSlice([]models.ContentItem{{ID: "dunes", Title: "Dunes", Rating: &rating}}),
	}).Error)
	ctx := context.Background()

	first, err := svc.List(ctx, "games")
	require.NoError(t, err)
	first[0].Title = "edited"
	*first[0].Rating = 1

	cached, err := svc.List(ctx, "games")
	require.NoError(t, err)
	require.Equal(t, "Dunes", cached[0].Title)
	require.Equal(t, 4.5, *cached[0].Rating)

	cached[0].ID = "changed"
	again, err := svc.List(ctx, "games")
	require.NoError(t, err)
	require.Equal(t, "dunes", again[0].ID)
}

func TestListRejectsUnknownType(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.List(context.Background(), "movies")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}
