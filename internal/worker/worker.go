package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/storyreel/backend/internal/db"
	"github.com/storyreel/backend/internal/models"
	"github.com/storyreel/backend/internal/queue"
	"github.com/storyreel/backend/internal/services"
	"github.com/storyreel/backend/internal/storage"
)

// Per-stage time limits. Each stage method carves its own deadline out of the
// caller's context so one stuck provider call can never wedge a video forever.
const (
	scriptTimeout     = 2 * time.Minute
	storyboardTimeout = 3 * time.Minute
	assetsTimeout     = 20 * time.Minute
	sceneTimeout      = 5 * time.Minute
	renderTimeout     = 30 * time.Minute

	dequeueTimeout = 5 * time.Second
)

// Store is the subset of the database layer the pipeline drives.
type Store interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	UpdateVideoStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error
	UpdateVideoError(ctx context.Context, id uuid.UUID, status models.VideoStatus, errorMessage string) error
	SetVideoScript(ctx context.Context, id uuid.UUID, script string) error
	SetVideoStoryboard(ctx context.Context, id uuid.UUID, scenes models.Scenes) error
	UpdateVideoScenes(ctx context.Context, id uuid.UUID, scenes models.Scenes) error
	SetVideoAudio(ctx context.Context, id uuid.UUID, audioURL string, durationSeconds float64) error
	SetVideoCaptions(ctx context.Context, id uuid.UUID, captionsURL string) error
	UpdateVideoUploadProgress(ctx context.Context, id uuid.UUID, percent int) error
	SetVideoAssetsGenerated(ctx context.Context, id uuid.UUID, imageURLs pq.StringArray) error
	SetVideoCompleted(ctx context.Context, id uuid.UUID, finalVideoURL string, totalDurationSeconds float64, captionsOmitted bool) error
}

// BlobStore is the object storage surface the pipeline uploads to and the
// renderer downloads from.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	UploadFile(ctx context.Context, storagePath, localPath, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	GetPublicURL(path string) string
}

// Compositor runs ffmpeg and measures media durations.
type Compositor interface {
	Run(ctx context.Context, args []string) (string, error)
	AudioDuration(ctx context.Context, path string) (float64, error)
}

// RenderQueue feeds the render worker loop.
type RenderQueue interface {
	EnqueueRender(ctx context.Context, videoID uuid.UUID) error
	DequeueRender(ctx context.Context, timeout time.Duration) (*queue.RenderJob, error)
}

var (
	_ Store       = (*db.DB)(nil)
	_ BlobStore   = (*storage.Storage)(nil)
	_ Compositor  = (*services.FFmpegService)(nil)
	_ RenderQueue = (*queue.Queue)(nil)
)

type Worker struct {
	store       Store
	queue       RenderQueue // nil = renders run inline instead of through Redis
	blobs       BlobStore
	script      services.ScriptGenerator
	storyboard  services.StoryboardGenerator
	images      services.ImageGenerator // primary provider
	fallback    services.ImageGenerator // optional fallback provider, nil = none
	tts         services.TTSService
	transcriber services.Transcriber
	compositor  Compositor
	tempRoot    string
	uploadSem   chan struct{} // Limits concurrent storage uploads to prevent congestion
}

func New(
	store Store,
	q RenderQueue,
	blobs BlobStore,
	scriptGen services.ScriptGenerator,
	storyboardGen services.StoryboardGenerator,
	imageGen services.ImageGenerator,
	fallbackGen services.ImageGenerator,
	ttsSvc services.TTSService,
	transcriber services.Transcriber,
	compositor Compositor,
	tempRoot string,
) *Worker {
	return &Worker{
		store:       store,
		queue:       q,
		blobs:       blobs,
		script:      scriptGen,
		storyboard:  storyboardGen,
		images:      imageGen,
		fallback:    fallbackGen,
		tts:         ttsSvc,
		transcriber: transcriber,
		compositor:  compositor,
		tempRoot:    tempRoot,
		uploadSem:   make(chan struct{}, 4), // Allow max 4 concurrent uploads
	}
}

// uploadWithLimit wraps an upload call with a semaphore so a burst of scene
// uploads cannot congest the storage backend.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
		// Acquired slot
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start runs the render worker loop until the context ends. Renders are
// deliberately processed one at a time: ffmpeg saturates the host on its own,
// so parallel renders only slow each other down.
func (w *Worker) Start(ctx context.Context) {
	if w.queue == nil {
		log.Println("[Worker] no render queue configured, render loop disabled")
		return
	}

	log.Println("[Worker] render worker started")

	for {
		select {
		case <-ctx.Done():
			log.Println("[Worker] shutting down...")
			return
		default:
			job, err := w.queue.DequeueRender(ctx, dequeueTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Worker] dequeue error: %v", err)
				continue
			}
			if job == nil {
				continue // No job available, retry
			}

			log.Printf("[Worker] processing render for video %s (queued at %s)", job.VideoID, job.EnqueuedAt.Format(time.RFC3339))

			if _, err := w.RenderVideo(ctx, job.VideoID); err != nil {
				log.Printf("[Worker] render for video %s failed: %v", job.VideoID, err)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Script stage
// ---------------------------------------------------------------------------

// GenerateScript writes the narration script for a video. On provider failure
// the video drops back to created with the error recorded, so the caller can
// simply trigger the stage again.
func (w *Worker) GenerateScript(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	if err := rejectInactive(video); err != nil {
		return nil, err
	}

	if err := w.store.UpdateVideoStatus(ctx, videoID, models.StatusScriptGenerating); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	stageCtx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()

	log.Printf("[Pipeline] video %s: generating script...", videoID)

	script, err := w.script.GenerateScript(stageCtx, video.InputText)
	if err != nil {
		log.Printf("[Pipeline] video %s: script generation failed: %v", videoID, err)
		if dbErr := w.store.UpdateVideoError(ctx, videoID, models.StatusCreated, fmt.Sprintf("script generation failed: %v", err)); dbErr != nil {
			return nil, fmt.Errorf("failed to record script error: %w", dbErr)
		}
		return w.store.GetVideo(ctx, videoID)
	}

	if stopped, err := w.cancelRequested(ctx, videoID); err != nil {
		return nil, err
	} else if stopped {
		log.Printf("[Pipeline] video %s: cancelled during script generation, discarding result", videoID)
		return w.store.GetVideo(ctx, videoID)
	}

	if err := w.store.SetVideoScript(ctx, videoID, script); err != nil {
		return nil, fmt.Errorf("failed to save script: %w", err)
	}

	log.Printf("[Pipeline] video %s: script ready (%d chars)", videoID, len(script))
	return w.store.GetVideo(ctx, videoID)
}

// ---------------------------------------------------------------------------
// Storyboard stage
// ---------------------------------------------------------------------------

// GenerateStoryboard splits the script into scenes. Requires a script; a
// provider failure parks the video in storyboard_failed.
func (w *Worker) GenerateStoryboard(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	if err := rejectInactive(video); err != nil {
		return nil, err
	}
	if video.Script == nil || *video.Script == "" {
		return nil, &services.Error{Kind: services.ErrInvalidInput, Message: "video has no script"}
	}

	if err := w.store.UpdateVideoStatus(ctx, videoID, models.StatusStoryboardGenerating); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	stageCtx, cancel := context.WithTimeout(ctx, storyboardTimeout)
	defer cancel()

	log.Printf("[Pipeline] video %s: generating storyboard...", videoID)

	plans, err := w.storyboard.GenerateStoryboard(stageCtx, *video.Script)
	if err != nil {
		log.Printf("[Pipeline] video %s: storyboard generation failed: %v", videoID, err)
		if dbErr := w.store.UpdateVideoError(ctx, videoID, models.StatusStoryboardFailed, fmt.Sprintf("storyboard generation failed: %v", err)); dbErr != nil {
			return nil, fmt.Errorf("failed to record storyboard error: %w", dbErr)
		}
		return w.store.GetVideo(ctx, videoID)
	}

	scenes := make(models.Scenes, 0, len(plans))
	for i, plan := range plans {
		scenes = append(scenes, models.Scene{
			Index:         i,
			NarrationText: plan.Narration,
			ImagePrompt:   plan.ImagePrompt,
		})
	}

	if stopped, err := w.cancelRequested(ctx, videoID); err != nil {
		return nil, err
	} else if stopped {
		log.Printf("[Pipeline] video %s: cancelled during storyboard generation, discarding result", videoID)
		return w.store.GetVideo(ctx, videoID)
	}

	if err := w.store.SetVideoStoryboard(ctx, videoID, scenes); err != nil {
		return nil, fmt.Errorf("failed to save storyboard: %w", err)
	}

	log.Printf("[Pipeline] video %s: storyboard ready (%d scenes)", videoID, len(scenes))
	return w.store.GetVideo(ctx, videoID)
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

// Cancel marks an in-flight video as cancelled. Running stages notice at
// their next checkpoint and stop without overwriting the status.
func (w *Worker) Cancel(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	if video.Status == models.StatusCancelled {
		return video, nil
	}
	if video.Status.IsTerminal() {
		return nil, &services.Error{
			Kind:    services.ErrInvalidInput,
			Message: fmt.Sprintf("cannot cancel a %s video", video.Status),
		}
	}

	if err := w.store.UpdateVideoStatus(ctx, videoID, models.StatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel video: %w", err)
	}

	log.Printf("[Pipeline] video %s: cancelled", videoID)
	return w.store.GetVideo(ctx, videoID)
}

// cancelRequested re-reads the record so a cancel issued mid-stage stops the
// work at the next checkpoint instead of being overwritten by it.
func (w *Worker) cancelRequested(ctx context.Context, videoID uuid.UUID) (bool, error) {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return false, fmt.Errorf("failed to re-check video: %w", err)
	}
	return video.Status == models.StatusCancelled, nil
}

// rejectInactive blocks stage triggers on videos that are mid-stage or
// cancelled. Completed and failed videos stay eligible so stages can re-run.
func rejectInactive(video *models.Video) error {
	if video.Status == models.StatusCancelled {
		return &services.Error{Kind: services.ErrInvalidInput, Message: "video generation was cancelled"}
	}
	if video.Status.IsBusy() {
		return &services.Error{
			Kind:    services.ErrInvalidInput,
			Message: fmt.Sprintf("video is busy (%s)", video.Status),
		}
	}
	return nil
}

// Helper functions
func strPtr(s string) *string {
	return &s
}
