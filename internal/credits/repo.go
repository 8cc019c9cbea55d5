package credits

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/pkg/db/models"
)

// Repository manages persistence for accounts and the credit journal.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	DebitIfSufficient(ctx context.Context, id string, amount int) (bool, error)
	AppendTransaction(ctx context.Context, entry *models.CreditTransaction) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID returns (nil, nil) when the account does not exist.
func (r *repository) FindByID(ctx context.Context, id string) (*models.Account, error) {
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

func (r *repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// DebitIfSufficient subtracts amount only while the balance covers it. The
// guard lives in the UPDATE so concurrent debits serialize on the row.
func (r *repository) DebitIfSufficient(ctx context.Context, id string, amount int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND credits >= ?", id, amount).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AppendTransaction(ctx context.Context, entry *models.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
