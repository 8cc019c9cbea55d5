package artifacts

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
	"github.com/sandgallery/sandgallery-backend/pkg/pagination"
)

// Repository persists creation history and storage usage.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccount(ctx context.Context, id string) (*models.Account, error)
	AddStorageUsage(ctx context.Context, id string, size, quota int64, enforce bool) (bool, error)
	CreateCreation(ctx context.Context, creation *models.Creation) error
	CreateAnalysis(ctx context.Context, analysis *models.VideoAnalysis) error
	ListCreations(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]models.Creation, error)
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

func (r *repository) FindAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// AddStorageUsage increments the usage counter. With enforce set the increment
// only applies while the new total stays within quota.
func (r *repository) AddStorageUsage(ctx context.Context, id string, size, quota int64, enforce bool) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id)
	if enforce {
		q = q.Where("storage_used_bytes + ? <= ?", size, quota)
	}
	res := q.Updates(map[string]any{
		"storage_used_bytes": gorm.Expr("storage_used_bytes + ?", size),
		"updated_at":         time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateCreation(ctx context.Context, creation *models.Creation) error {
	return r.db.WithContext(ctx).Create(creation).Error
}

func (r *repository) CreateAnalysis(ctx context.Context, analysis *models.VideoAnalysis) error {
	return r.db.WithContext(ctx).Create(analysis).Error
}

func (r *repository) ListCreations(ctx context.Context, userID string, before *pagination.Cursor, limit int) ([]models.Creation, error) {
	var rows []models.Creation
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if before != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", before.CreatedAt, before.CreatedAt, before.ID)
	}
	err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
