package models

import (
	"time"

	"gorm.io/gorm"
)

// Deliverable is the persisted result of a completed RenderJob: the
// published file path plus its DeliverableManifest, stored verbatim so
// GET /api/v1/jobs/:id/manifest can serve it without re-running QC.
type Deliverable struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	RenderJobID uint           `json:"render_job_id" gorm:"uniqueIndex;not null"`
	OutputPath  string         `json:"output_path" gorm:"not null;size:500"`
	FileSize    int64          `json:"file_size"`
	Manifest    JSON           `json:"manifest" gorm:"type:jsonb;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
