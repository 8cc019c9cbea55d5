package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/sandgallery/sandgallery-backend/pkg/enums"
)

// ContentItem is one entry of a gallery document (a game or a tool).
type ContentItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	MediaURL    string   `json:"mediaUrl"`
	Status      string   `json:"status"`
	Plays       int      `json:"plays,omitempty"`
	Uses        int      `json:"uses,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
}

// ContentDocument stores the ordered item list for one content type.
type ContentDocument struct {
	Key       enums.ContentType                `gorm:"column:key;type:text;primaryKey"`
	Items     datatypes.JSONSlice[ContentItem] `gorm:"column:items;type:jsonb;not null"`
	UpdatedAt time.Time                        `gorm:"column:updated_at;autoUpdateTime"`
}

// SiteConfig is a keyed JSON object merged field by field.
type SiteConfig struct {
	Key       string            `gorm:"column:key;type:text;primaryKey"`
	Data      datatypes.JSONMap `gorm:"column:data;type:jsonb;not null"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (SiteConfig) TableName() string {
	return "site_config"
}
