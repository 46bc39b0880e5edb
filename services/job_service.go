package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/metavis/renderengine/internal/orchestrator"
	"github.com/metavis/renderengine/models"
	"github.com/metavis/renderengine/pkg/cache"
	"github.com/metavis/renderengine/pkg/database"
	"github.com/metavis/renderengine/pkg/logger"
	"github.com/metavis/renderengine/pkg/queue"
)

type JobService struct {
	db *gorm.DB
}

func NewJobService() *JobService {
	return &JobService{
		db: database.GetDB(),
	}
}

// CreateJob validates the governance plan exists, persists a pending
// RenderJob row, and publishes a render_job task for cmd/renderd to
// pick up. Full governance authorization (resolution/duration/codec/
// watermark) runs again inside orchestrator.Run against the job's
// actual timeline, since that requires decoding the submitted Timeline.
func (s *JobService) CreateJob(userID uint, req *models.RenderJobCreateRequest) (*models.RenderJob, error) {
	var plan models.GovernancePlan
	if err := s.db.First(&plan, req.GovernancePlanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("governance plan not found")
		}
		return nil, errors.New("failed to load governance plan")
	}

	wireTimeline, err := orchestrator.ParseWireTimeline(req.Timeline)
	if err != nil {
		return nil, fmt.Errorf("invalid timeline: %w", err)
	}
	if _, err := wireTimeline.ToTimeline(); err != nil {
		return nil, fmt.Errorf("invalid timeline: %w", err)
	}

	fpsNum, fpsDen := req.FPSNum, req.FPSDen
	if fpsNum == 0 {
		fpsNum = 24
	}
	if fpsDen == 0 {
		fpsDen = 1
	}

	job := &models.RenderJob{
		JobID:            fmt.Sprintf("job_%d", time.Now().UnixNano()),
		Status:           models.RenderJobStatusPending,
		Timeline:         models.JSON(req.Timeline),
		Quality:          req.Quality,
		FPSNum:           fpsNum,
		FPSDen:           fpsDen,
		VideoCodec:       req.VideoCodec,
		AudioCodec:       req.AudioCodec,
		Watermark:        req.Watermark,
		SidecarKinds:     models.StringArray(req.SidecarKinds),
		GovernancePlanID: req.GovernancePlanID,
		UserID:           userID,
	}

	if err := s.db.Create(job).Error; err != nil {
		logger.Errorf("Failed to create render job: %v", err)
		return nil, errors.New("failed to create render job")
	}

	if err := queue.PublishRenderJobTask(job.JobID); err != nil {
		logger.Errorf("Failed to publish render job task %s: %v", job.JobID, err)
		return nil, errors.New("failed to queue render job")
	}

	if cache.Cache != nil {
		_ = cache.Cache.Set(cache.RenderJobStatusCacheKey(job.JobID), job.Status, time.Hour)
	}

	logger.Infof("Render job %s created for user %d", job.JobID, userID)
	return job, nil
}

// GetJobByJobID reads a job's row from MySQL and, when Redis holds a
// cached status for it (written at submission and on each status
// change by the worker), reports that status instead.
func (s *JobService) GetJobByJobID(jobID string) (*models.RenderJob, error) {
	var job models.RenderJob
	if err := s.db.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("render job not found")
		}
		return nil, errors.New("failed to load render job")
	}

	if cache.Cache != nil {
		if status, err := cache.Cache.Get(cache.RenderJobStatusCacheKey(jobID)); err == nil && status != "" {
			job.Status = status
		}
	}

	return &job, nil
}

// GetDeliverable returns the published manifest for a completed job.
func (s *JobService) GetDeliverable(jobID string) (*models.Deliverable, error) {
	job, err := s.GetJobByJobID(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.RenderJobStatusCompleted {
		return nil, errors.New("render job has not completed")
	}

	var deliverable models.Deliverable
	if err := s.db.Where("render_job_id = ?", job.ID).First(&deliverable).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("deliverable not found")
		}
		return nil, errors.New("failed to load deliverable")
	}

	return &deliverable, nil
}
