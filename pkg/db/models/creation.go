package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/pkg/enums"
)

// Creation is the append-only history entry for one persisted generation.
type Creation struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string               `gorm:"column:user_id;type:text;not null" json:"userId"`
	Kind      enums.GenerationKind `gorm:"column:kind;type:text;not null" json:"kind"`
	Prompt    string               `gorm:"column:prompt;type:text" json:"prompt"`
	URL       string               `gorm:"column:url;type:text;not null" json:"url"`
	Cost      int                  `gorm:"column:cost;not null" json:"cost"`
	SizeBytes int64                `gorm:"column:size_bytes;not null" json:"sizeBytes"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (c *Creation) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
