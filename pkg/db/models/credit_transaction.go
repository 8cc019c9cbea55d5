package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditTransaction journals one successful deduct.
type CreditTransaction struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	AccountID    string    `gorm:"column:account_id;type:text;not null"`
	Amount       int       `gorm:"column:amount;not null"`
	BalanceAfter int       `gorm:"column:balance_after;not null"`
	Reason       string    `gorm:"column:reason;type:text;not null"`
	Bypassed     bool      `gorm:"column:bypassed;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (t *CreditTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
