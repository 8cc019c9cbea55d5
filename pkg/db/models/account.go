package models

import (
	"time"

	"github.com/sandgallery/sandgallery-backend/pkg/enums"
)

// Account is keyed by the identity token subject and carries the credit balance
// and cumulative storage usage for one user.
type Account struct {
	ID               string            `gorm:"column:id;type:text;primaryKey"`
	Email            string            `gorm:"column:email;type:text"`
	Credits          int               `gorm:"column:credits;not null"`
	StorageUsedBytes int64             `gorm:"column:storage_used_bytes;not null"`
	Role             enums.AccountRole `gorm:"column:role;type:text;not null"`
	Unlimited        bool              `gorm:"column:unlimited;not null"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Privileged accounts bypass credit deduction and the storage quota.
func (a Account) Privileged() bool {
	return a.Role == enums.AccountRoleAdmin || a.Unlimited
}
