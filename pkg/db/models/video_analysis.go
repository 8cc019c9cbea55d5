package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sandgallery/sandgallery-backend/pkg/enums"
)

// VideoScores holds the five rubric scores, each in [0, 100].
type VideoScores struct {
	Editing      int `json:"editing"`
	FX           int `json:"fx"`
	Pacing       int `json:"pacing"`
	Storytelling int `json:"storytelling"`
	Quality      int `json:"quality"`
}

// VideoCritiques holds one free-text critique per rubric criterion.
type VideoCritiques struct {
	Editing      string `json:"editing"`
	FX           string `json:"fx"`
	Pacing       string `json:"pacing"`
	Storytelling string `json:"storytelling"`
	Quality      string `json:"quality"`
}

type VideoAnalysis struct {
	ID          uuid.UUID                          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      string                             `gorm:"column:user_id;type:text;not null" json:"userId"`
	StoragePath string                             `gorm:"column:storage_path;type:text;not null" json:"storagePath"`
	Harshness   enums.Harshness                    `gorm:"column:harshness;type:text;not null" json:"harshness"`
	Perspective enums.Perspective                  `gorm:"column:perspective;type:text;not null" json:"perspective"`
	Scores      datatypes.JSONType[VideoScores]    `gorm:"column:scores;type:jsonb;not null" json:"scores"`
	Critiques   datatypes.JSONType[VideoCritiques] `gorm:"column:critiques;type:jsonb;not null" json:"critiques"`
	Reasoning   string                             `gorm:"column:reasoning;type:text" json:"reasoning"`
	Model       string                             `gorm:"column:model;type:text;not null" json:"model"`
	CreatedAt   time.Time                          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (v *VideoAnalysis) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
