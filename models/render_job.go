package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// StringArray persists a Go string slice as a JSON array column,
// carried over from the teacher's AtomicClip tagging fields and reused
// here for RenderJob's sidecar kinds and GovernancePlan's codec list.
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return nil
}

// JSON persists an arbitrary JSON object column, carried over from the
// teacher's Project/Template Timeline/Settings fields. RenderJob uses
// it to store the submitted editmodel.Timeline and the resulting
// orchestrator.DeliverableManifest as opaque, schema-versioned blobs.
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

const (
	RenderJobStatusPending   = "pending"
	RenderJobStatusRunning   = "running"
	RenderJobStatusCompleted = "completed"
	RenderJobStatusFailed    = "failed"
)

// RenderJob is the persisted unit of work a POST /api/v1/jobs request
// creates and cmd/renderd drains: a Timeline + QualityProfile bound to
// a GovernancePlan, tracked through pending/running/completed/failed.
type RenderJob struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	JobID  string `json:"job_id" gorm:"uniqueIndex;not null;size:50"`
	Status string `json:"status" gorm:"default:'pending';size:20"`

	// Render request
	Timeline    JSON    `json:"timeline" gorm:"type:jsonb;not null"`
	Quality     string  `json:"quality" gorm:"size:20"`
	FPSNum      int     `json:"fps_num" gorm:"default:24"`
	FPSDen      int     `json:"fps_den" gorm:"default:1"`
	VideoCodec  string  `json:"video_codec" gorm:"size:50"`
	AudioCodec  string  `json:"audio_codec" gorm:"size:50"`
	Watermark   bool    `json:"watermark"`
	SidecarKinds StringArray `json:"sidecar_kinds" gorm:"type:text"`

	// Progress and outcome, written here by the worker (Redis caches only the status)
	Progress     int        `json:"progress" gorm:"default:0"`
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	RetryCount   int        `json:"retry_count" gorm:"default:0"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`

	// Relations
	GovernancePlanID uint `json:"governance_plan_id" gorm:"not null"`
	UserID           uint `json:"user_id" gorm:"not null"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	GovernancePlan GovernancePlan `json:"governance_plan,omitempty" gorm:"foreignKey:GovernancePlanID"`
	User           User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Deliverable    *Deliverable   `json:"deliverable,omitempty" gorm:"foreignKey:RenderJobID"`
}

type RenderJobCreateRequest struct {
	Timeline         map[string]interface{} `json:"timeline" binding:"required"`
	Quality          string                  `json:"quality" binding:"required"`
	FPSNum           int                     `json:"fps_num" binding:"omitempty,min=1"`
	FPSDen           int                     `json:"fps_den" binding:"omitempty,min=1"`
	VideoCodec       string                  `json:"video_codec" binding:"omitempty"`
	AudioCodec       string                  `json:"audio_codec" binding:"omitempty"`
	Watermark        bool                    `json:"watermark" binding:"omitempty"`
	SidecarKinds     []string                `json:"sidecar_kinds" binding:"omitempty"`
	GovernancePlanID uint                    `json:"governance_plan_id" binding:"required"`
}
