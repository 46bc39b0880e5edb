// Command renderd is the background worker SPEC_FULL §4.8 names: it
// drains the render_job queue, reloads each job's RenderJob row from
// MySQL, and runs the Deliverable Orchestrator pipeline against the
// job's submitted timeline. It saves the job's status to MySQL when
// the job starts, fails or completes (progress is set to 100 on
// completion, with the manifest), and mirrors each status to Redis.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/metavis/renderengine/config"
	"github.com/metavis/renderengine/internal/audiomix"
	"github.com/metavis/renderengine/internal/clipreader"
	"github.com/metavis/renderengine/internal/gpuexec"
	"github.com/metavis/renderengine/internal/orchestrator"
	"github.com/metavis/renderengine/internal/qc"
	"github.com/metavis/renderengine/internal/sidecar"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/models"
	"github.com/metavis/renderengine/pkg/cache"
	"github.com/metavis/renderengine/pkg/clock"
	"github.com/metavis/renderengine/pkg/database"
	"github.com/metavis/renderengine/pkg/fsadapter"
	"github.com/metavis/renderengine/pkg/logger"
	"github.com/metavis/renderengine/pkg/queue"
)

// renderConcurrency is how many render_job tasks this process works on
// at once; each job itself bounds per-frame concurrency separately via
// config.RenderConfig.FrameConcurrency.
const renderConcurrency = 2

func main() {
	if err := config.LoadConfig(); err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	logger.InitLogger(cfg)
	logger.Info("Starting renderd worker...")

	if err := database.InitDatabase(cfg); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to auto-migrate models: %v", err)
	}
	if err := cache.InitRedis(cfg); err != nil {
		logger.Fatalf("Failed to initialize Redis: %v", err)
	}
	if err := queue.InitRabbitMQ(cfg); err != nil {
		logger.Fatalf("Failed to initialize RabbitMQ: %v", err)
	}

	w := newWorker(cfg)

	if err := queue.Queue.ConsumeTask(queue.QueueRenderJob, w.handleTask, renderConcurrency); err != nil {
		logger.Fatalf("Failed to start render_job workers: %v", err)
	}
	logger.Info("renderd worker ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down renderd worker...")
	if err := queue.Queue.Close(); err != nil {
		logger.Errorf("Failed to close RabbitMQ connection: %v", err)
	}
	if err := cache.Cache.Close(); err != nil {
		logger.Errorf("Failed to close Redis connection: %v", err)
	}
	logger.Info("renderd worker stopped")
}

// worker owns one Orchestrator and reuses it across jobs; the
// orchestrator itself carries no state between Run calls.
type worker struct {
	cfg  *config.Config
	orch *orchestrator.Orchestrator
}

func newWorker(cfg *config.Config) *worker {
	// No concrete decode.Decoder is wired in yet (DESIGN.md's open
	// question on native decoders): only ligm: procedural sources
	// render end to end until one is added.
	reader := clipreader.NewReader(nil, nil, nil, nil, clipreader.MemoryPressurePolicy{
		FrameEntries: 64, StillBytes: 256 << 20, DecoderEntries: 8,
	})
	executor, usedGPU := gpuexec.NewExecutor(true)
	logger.Infof("renderd executor backend: gpu=%v", usedGPU)

	orch := orchestrator.New(
		fsadapter.NewReal(),
		cfg.FFmpeg.FFmpegPath,
		executor,
		reader,
		audiomix.DefaultAssetSource{},
		clock.NewSystem(),
		cfg.Render.StagingRoot,
	).WithFrameConcurrency(cfg.Render.FrameConcurrency)

	return &worker{cfg: cfg, orch: orch}
}

func (w *worker) handleTask(task *queue.Task) error {
	jobIDVal, ok := task.Payload["job_id"].(string)
	if !ok || jobIDVal == "" {
		return fmt.Errorf("render_job task missing job_id")
	}

	db := database.GetDB()
	var row models.RenderJob
	if err := db.Where("job_id = ?", jobIDVal).First(&row).Error; err != nil {
		return fmt.Errorf("failed to load render job %s: %w", jobIDVal, err)
	}

	if err := w.markRunning(&row); err != nil {
		return err
	}

	manifest, destPath, err := w.render(&row)
	if err != nil {
		w.markFailed(&row, err)
		return err
	}

	return w.markCompleted(&row, manifest, destPath)
}

func (w *worker) render(row *models.RenderJob) (orchestrator.DeliverableManifest, string, error) {
	wireTimeline, err := orchestrator.ParseWireTimeline(row.Timeline)
	if err != nil {
		return orchestrator.DeliverableManifest{}, "", err
	}
	timeline, err := wireTimeline.ToTimeline()
	if err != nil {
		return orchestrator.DeliverableManifest{}, "", err
	}

	var plan models.GovernancePlan
	if err := database.GetDB().First(&plan, row.GovernancePlanID).Error; err != nil {
		return orchestrator.DeliverableManifest{}, "", fmt.Errorf("failed to load governance plan: %w", err)
	}

	videoCodec := row.VideoCodec
	if videoCodec == "" {
		videoCodec = "libx264"
	}
	audioCodec := row.AudioCodec
	if audioCodec == "" {
		audioCodec = "aac"
	}

	destPath := filepath.Join(w.cfg.Render.OutputRoot, row.JobID, "deliverable.mp4")
	profile := orchestrator.QualityProfileForName(row.Quality)

	job := orchestrator.Job{
		Timeline:      timeline,
		Profile:       profile,
		FPS:           timecode.FPS{Num: int64(fpsOrDefault(row.FPSNum, 24)), Den: int64(fpsOrDefault(row.FPSDen, 1))},
		VideoCodec:    videoCodec,
		AudioCodec:    audioCodec,
		SilencePolicy: audiomix.SilenceAuto,
		SampleRate:    48000,
		QCPolicy:      qc.Policy{},
		Plan: orchestrator.Plan{
			Name:            plan.Name,
			MaxResolutionH:  plan.MaxResolutionH,
			MaxDuration:     timecode.FromSeconds(plan.MaxDurationSecs),
			WatermarkPolicy: orchestrator.WatermarkPolicy(plan.WatermarkPolicy),
			AllowedCodecs:   []string(plan.AllowedCodecs),
		},
		Request: orchestrator.DeliverableRequest{
			ResolutionHeight: profile.ResolutionHeight,
			Duration:         timeline.Duration,
			VideoCodec:       videoCodec,
			WatermarkApplied: row.Watermark,
		},
		DestPath: destPath,
	}
	for _, kind := range row.SidecarKinds {
		job.SidecarRequests = append(job.SidecarRequests, sidecar.Request{
			Kind:       sidecar.Kind(kind),
			VideoPath:  destPath,
			FrameCount: 6,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()
	manifest, err := w.orch.Run(ctx, job)
	return manifest, destPath, err
}

func fpsOrDefault(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}

func (w *worker) markRunning(row *models.RenderJob) error {
	now := time.Now()
	row.Status = models.RenderJobStatusRunning
	row.StartedAt = &now
	if err := database.GetDB().Save(row).Error; err != nil {
		return fmt.Errorf("failed to mark job %s running: %w", row.JobID, err)
	}
	w.mirrorStatus(row.JobID, row.Status)
	return nil
}

func (w *worker) markFailed(row *models.RenderJob, cause error) {
	row.Status = models.RenderJobStatusFailed
	row.ErrorMessage = cause.Error()
	row.RetryCount++
	if err := database.GetDB().Save(row).Error; err != nil {
		logger.Errorf("failed to persist failure for job %s: %v", row.JobID, err)
	}
	w.mirrorStatus(row.JobID, row.Status)
}

func (w *worker) markCompleted(row *models.RenderJob, manifest orchestrator.DeliverableManifest, destPath string) error {
	manifestBytes, err := manifest.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest for job %s: %w", row.JobID, err)
	}
	var manifestMap models.JSON
	if err := json.Unmarshal(manifestBytes, &manifestMap); err != nil {
		return fmt.Errorf("failed to decode manifest for job %s: %w", row.JobID, err)
	}

	now := time.Now()
	row.Status = models.RenderJobStatusCompleted
	row.Progress = 100
	row.CompletedAt = &now

	fileSize := int64(0)
	if info, statErr := os.Stat(destPath); statErr == nil {
		fileSize = info.Size()
	}

	deliverable := models.Deliverable{
		RenderJobID: row.ID,
		OutputPath:  destPath,
		FileSize:    fileSize,
		Manifest:    manifestMap,
	}

	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&deliverable).Error; err != nil {
			return err
		}
		return tx.Save(row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to persist completed job %s: %w", row.JobID, err)
	}

	w.mirrorStatus(row.JobID, row.Status)
	logger.Infof("render job %s completed, deliverable at %s", row.JobID, destPath)
	return nil
}

func (w *worker) mirrorStatus(jobID, status string) {
	if cache.Cache == nil {
		return
	}
	if err := cache.Cache.Set(cache.RenderJobStatusCacheKey(jobID), status, time.Hour); err != nil {
		logger.Warnf("failed to mirror status for job %s: %v", jobID, err)
	}
}
