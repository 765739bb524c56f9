package worker

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/storyreel/backend/internal/models"
	"github.com/storyreel/backend/internal/services"
	"github.com/storyreel/backend/internal/storage"
)

// Scene timing was computed from the TTS duration estimate. Before rendering,
// the downloaded narration is re-measured with ffprobe; if the estimate was
// off by more than this the scenes get retimed to the measured value.
const maxAudioDriftSeconds = 0.25

// ValidateRenderable reports why a video cannot be rendered. Each
// precondition gets its own message so callers see the actual gap instead of
// a generic rejection.
func ValidateRenderable(video *models.Video) *services.Error {
	if video.FinalVideoURL != nil {
		return &services.Error{Kind: services.ErrInvalidInput, Message: "video already has a final render"}
	}
	switch video.Status {
	case models.StatusAssetsGenerated, models.StatusRenderFailed:
	default:
		return &services.Error{
			Kind:    services.ErrInvalidInput,
			Message: fmt.Sprintf("video is not ready to render (status %s)", video.Status),
		}
	}
	if len(video.Scenes) == 0 {
		return &services.Error{Kind: services.ErrInvalidInput, Message: "video has no scenes"}
	}
	if video.AudioURL == nil {
		return &services.Error{Kind: services.ErrInvalidInput, Message: "video has no narration audio"}
	}
	if video.CaptionsURL == nil {
		return &services.Error{Kind: services.ErrInvalidInput, Message: "video has no captions"}
	}
	if video.RealImageCount() == 0 {
		return &services.Error{Kind: services.ErrInvalidInput, Message: "video has no scene images"}
	}
	for i := range video.Scenes {
		if video.Scenes[i].ImageURL == nil {
			return &services.Error{
				Kind:    services.ErrInvalidInput,
				Message: fmt.Sprintf("scene %d has no image", i),
			}
		}
	}
	return nil
}

// BeginRender checks the render preconditions and claims the video by moving
// it to rendering. A violated precondition is recorded on the video as
// render_failed and returned as a typed error; a video already rendering is
// rejected without touching its state. Claiming before enqueueing is what
// keeps a double-trigger from queueing the same render twice.
func (w *Worker) BeginRender(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	if video.Status == models.StatusRendering {
		return nil, &services.Error{Kind: services.ErrInvalidInput, Message: "render already in progress"}
	}
	if video.Status == models.StatusCancelled {
		return nil, &services.Error{Kind: services.ErrInvalidInput, Message: "video generation was cancelled"}
	}
	if verr := ValidateRenderable(video); verr != nil {
		log.Printf("[Render] video %s: precondition failed: %s", videoID, verr.Message)
		if _, err := w.failRender(ctx, videoID, verr.Message); err != nil {
			return nil, err
		}
		return nil, verr
	}

	if err := w.store.UpdateVideoStatus(ctx, videoID, models.StatusRendering); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	return w.store.GetVideo(ctx, videoID)
}

// RenderVideo composites the slideshow, narration, and captions into the
// final vertical video and publishes it. The video must have been claimed by
// BeginRender; calling it directly on an unclaimed video claims it first.
// Pipeline failures land the video in render_failed with the compositor's
// full output preserved; the stage can then be triggered again.
func (w *Worker) RenderVideo(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if video.Status != models.StatusRendering {
		video, err = w.BeginRender(ctx, videoID)
		if err != nil {
			return nil, err
		}
	}

	stageCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	if err := os.MkdirAll(w.tempRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp root: %w", err)
	}
	tempDir, err := os.MkdirTemp(w.tempRoot, "render-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	// Every exit path below must release the workspace.
	defer os.RemoveAll(tempDir)

	scenes := video.Scenes
	audioPath := filepath.Join(tempDir, "narration.mp3")
	captionsPath := filepath.Join(tempDir, "captions.srt")
	placeholderPath := filepath.Join(tempDir, "placeholder.png")
	hasCaptions := video.CaptionsURL != nil

	// --- Download assets ---
	log.Printf("[Render] video %s: downloading %d scene images + narration...", videoID, len(scenes))

	g, gctx := errgroup.WithContext(stageCtx)

	g.Go(func() error {
		data, err := w.blobs.Download(gctx, storage.AudioKey(video.ID))
		if err != nil {
			return fmt.Errorf("failed to download narration: %w", err)
		}
		return os.WriteFile(audioPath, data, 0644)
	})

	if hasCaptions {
		g.Go(func() error {
			data, err := w.blobs.Download(gctx, storage.CaptionsKey(video.ID))
			if err != nil {
				return fmt.Errorf("failed to download captions: %w", err)
			}
			return os.WriteFile(captionsPath, data, 0644)
		})
	}

	// Placeholder scenes all share one object; fetch it at most once.
	imagePaths := make([]string, len(scenes))
	needPlaceholder := false
	for i := range scenes {
		if scenes[i].IsPlaceholder {
			imagePaths[i] = placeholderPath
			needPlaceholder = true
			continue
		}
		imagePaths[i] = filepath.Join(tempDir, fmt.Sprintf("scene_%03d.png", i))
		sceneIndex := i
		path := imagePaths[i]
		g.Go(func() error {
			data, err := w.blobs.Download(gctx, storage.ImageKey(video.ID, sceneIndex))
			if err != nil {
				return fmt.Errorf("failed to download scene %d image: %w", sceneIndex, err)
			}
			return os.WriteFile(path, data, 0644)
		})
	}
	if needPlaceholder {
		g.Go(func() error {
			data, err := w.blobs.Download(gctx, storage.PlaceholderKey(video.ID))
			if err != nil {
				return fmt.Errorf("failed to download placeholder image: %w", err)
			}
			return os.WriteFile(placeholderPath, data, 0644)
		})
	}

	if err := g.Wait(); err != nil {
		return w.failRender(ctx, videoID, fmt.Sprintf("asset download failed: %v", err))
	}

	if stopped, err := w.cancelRequested(ctx, videoID); err != nil {
		return nil, err
	} else if stopped {
		log.Printf("[Render] video %s: cancelled before compositing", videoID)
		return w.store.GetVideo(ctx, videoID)
	}

	// --- Re-measure narration ---
	stored := 0.0
	if video.TotalDurationSeconds != nil {
		stored = *video.TotalDurationSeconds
	}

	measured, err := w.compositor.AudioDuration(stageCtx, audioPath)
	if err != nil || measured <= 0 {
		log.Printf("[Render] video %s: could not re-measure narration (%v), keeping stored %.2fs", videoID, err, stored)
		measured = stored
	}

	durations := make([]float64, len(scenes))
	for i := range scenes {
		durations[i] = scenes[i].DurationSeconds
	}

	if measured > 0 && math.Abs(measured-stored) > maxAudioDriftSeconds {
		log.Printf("[Render] video %s: narration measures %.2fs vs stored %.2fs, retiming scenes", videoID, measured, stored)
		durations, err = computeSceneDurations(measured, len(scenes))
		if err != nil {
			return nil, err
		}
		for i := range scenes {
			scenes[i].DurationSeconds = durations[i]
		}
		if dbErr := w.store.UpdateVideoScenes(ctx, videoID, scenes); dbErr != nil {
			log.Printf("[Render] video %s: failed to persist retimed scenes: %v", videoID, dbErr)
		}
		if dbErr := w.store.SetVideoAudio(ctx, videoID, *video.AudioURL, measured); dbErr != nil {
			log.Printf("[Render] video %s: failed to persist measured duration: %v", videoID, dbErr)
		}
	}

	totalSeconds := measured
	if totalSeconds <= 0 {
		for _, d := range durations {
			totalSeconds += d
		}
	}

	// --- Composite ---
	manifest, err := services.BuildConcatList(imagePaths, durations)
	if err != nil {
		return nil, fmt.Errorf("failed to build concat list: %w", err)
	}
	listPath := filepath.Join(tempDir, "slideshow.ffconcat")
	if err := os.WriteFile(listPath, []byte(manifest), 0644); err != nil {
		return nil, fmt.Errorf("failed to write concat list: %w", err)
	}

	outputPath := filepath.Join(tempDir, "final.mp4")
	renderSpec := services.RenderSpec{
		ConcatListPath: listPath,
		AudioPath:      audioPath,
		OutputPath:     outputPath,
		SceneCount:     len(scenes),
		TotalDuration:  totalSeconds,
	}
	if hasCaptions {
		renderSpec.SubtitlesPath = captionsPath
	}
	captionsOmitted := !hasCaptions

	log.Printf("[Render] video %s: compositing %d scenes (%.1fs, captions: %v)...", videoID, len(scenes), totalSeconds, hasCaptions)

	output, renderErr := w.compositor.Run(stageCtx, services.BuildRenderArgs(renderSpec))
	if renderErr != nil && renderSpec.SubtitlesPath != "" {
		// A failed subtitle burn should not sink the render
		log.Printf("[Render] video %s: render with captions failed, retrying without: %v", videoID, renderErr)
		renderSpec.SubtitlesPath = ""
		output, renderErr = w.compositor.Run(stageCtx, services.BuildRenderArgs(renderSpec))
		if renderErr == nil {
			captionsOmitted = true
		}
	}
	if renderErr != nil {
		// error_message carries the compositor's output untruncated
		return w.failRender(ctx, videoID, fmt.Sprintf("render failed: %v\n%s", renderErr, output))
	}

	if stopped, err := w.cancelRequested(ctx, videoID); err != nil {
		return nil, err
	} else if stopped {
		log.Printf("[Render] video %s: cancelled before publishing", videoID)
		return w.store.GetVideo(ctx, videoID)
	}

	// --- Publish ---
	finalKey := storage.FinalVideoKey(video.ID)
	if err := w.uploadWithLimit(stageCtx, "final video", func() error {
		return w.blobs.UploadFile(stageCtx, finalKey, outputPath, "video/mp4")
	}); err != nil {
		return w.failRender(ctx, videoID, fmt.Sprintf("failed to upload final video: %v", err))
	}

	if err := w.store.SetVideoCompleted(ctx, videoID, w.blobs.GetPublicURL(finalKey), totalSeconds, captionsOmitted); err != nil {
		return nil, fmt.Errorf("failed to finish render stage: %w", err)
	}

	log.Printf("[Render] video %s: completed (%.1fs, captions omitted: %v)", videoID, totalSeconds, captionsOmitted)
	return w.store.GetVideo(ctx, videoID)
}

func (w *Worker) failRender(ctx context.Context, videoID uuid.UUID, message string) (*models.Video, error) {
	if err := w.store.UpdateVideoError(ctx, videoID, models.StatusRenderFailed, message); err != nil {
		return nil, fmt.Errorf("failed to record render failure: %w", err)
	}
	return w.store.GetVideo(ctx, videoID)
}
