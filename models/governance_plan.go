package models

import (
	"time"

	"gorm.io/gorm"
)

// GovernancePlan is the persisted form of orchestrator.Plan: the
// delivery limits a render_job must be authorized against before the
// orchestrator runs it.
type GovernancePlan struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Name            string         `json:"name" gorm:"uniqueIndex;not null;size:100"`
	MaxResolutionH  int            `json:"max_resolution_h" gorm:"default:2160"`
	MaxDurationSecs float64        `json:"max_duration_secs"`
	WatermarkPolicy string         `json:"watermark_policy" gorm:"default:'optional';size:20"`
	AllowedCodecs   StringArray    `json:"allowed_codecs" gorm:"type:text"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`

	RenderJobs []RenderJob `json:"render_jobs,omitempty" gorm:"foreignKey:GovernancePlanID"`
}

type GovernancePlanCreateRequest struct {
	Name            string   `json:"name" binding:"required,max=100"`
	MaxResolutionH  int      `json:"max_resolution_h" binding:"omitempty,min=240,max=4320"`
	MaxDurationSecs float64  `json:"max_duration_secs" binding:"omitempty,min=0"`
	WatermarkPolicy string   `json:"watermark_policy" binding:"omitempty,oneof=forbidden optional required"`
	AllowedCodecs   []string `json:"allowed_codecs" binding:"omitempty"`
}
