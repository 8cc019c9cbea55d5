package content

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindDocument(ctx context.Context, key enums.ContentType) (*models.ContentDocument, error)
	SaveDocument(ctx context.Context, doc *models.ContentDocument) error
	FindSiteConfig(ctx context.Context, key string) (*models.SiteConfig, error)
	SaveSiteConfig(ctx context.Context, cfg *models.SiteConfig) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindDocument(ctx context.Context, key enums.ContentType) (*models.ContentDocument, error) {
	var doc models.ContentDocument
	err := r.db.WithContext(ctx).Where(map[string]any{"key": key}).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *repository) SaveDocument(ctx context.Context, doc *models.ContentDocument) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at"}),
	}).Create(doc).Error
}

func (r *repository) FindSiteConfig(ctx context.Context, key string) (*models.SiteConfig, error) {
	var cfg models.SiteConfig
	err := r.db.WithContext(ctx).Where(map[string]any{"key": key}).Take(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) SaveSiteConfig(ctx context.Context, cfg *models.SiteConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(cfg).Error
}
