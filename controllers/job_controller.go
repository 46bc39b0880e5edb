package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/metavis/renderengine/middleware"
	"github.com/metavis/renderengine/models"
	"github.com/metavis/renderengine/pkg/logger"
	"github.com/metavis/renderengine/services"
)

type JobController struct {
	jobService *services.JobService
}

func NewJobController() *JobController {
	return &JobController{
		jobService: services.NewJobService(),
	}
}

// @Summary Submit a render job
// @Description Validate governance and queue a Timeline for rendering
// @Tags jobs
// @Accept json
// @Produce json
// @Param job body models.RenderJobCreateRequest true "Render job request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/jobs [post]
func (c *JobController) Create(ctx *gin.Context) {
	var req models.RenderJobCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	userID, _ := middleware.GetUserID(ctx)

	job, err := c.jobService.CreateJob(userID, &req)
	if err != nil {
		logger.Warnf("Failed to create render job: %v", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"job_id": job.JobID,
		"status": job.Status,
	})
}

// @Summary Get render job status
// @Tags jobs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/jobs/{id} [get]
func (c *JobController) Get(ctx *gin.Context) {
	jobID := ctx.Param("id")

	job, err := c.jobService.GetJobByJobID(jobID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"job_id":        job.JobID,
		"status":        job.Status,
		"progress":      job.Progress,
		"error_message": job.ErrorMessage,
		"started_at":    job.StartedAt,
		"completed_at":  job.CompletedAt,
	})
}

// @Summary Get a completed job's deliverable manifest
// @Tags jobs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/jobs/{id}/manifest [get]
func (c *JobController) Manifest(ctx *gin.Context) {
	jobID := ctx.Param("id")

	deliverable, err := c.jobService.GetDeliverable(jobID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"output_path": deliverable.OutputPath,
		"file_size":   deliverable.FileSize,
		"manifest":    deliverable.Manifest,
	})
}
