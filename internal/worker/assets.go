package worker

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/models"
	"github.com/storyreel/backend/internal/services"
	"github.com/storyreel/backend/internal/storage"
)

// GenerateAssets produces everything the renderer needs: narration audio,
// one still image per scene, and the caption file.
//
// Narration comes first and is fatal on failure since scene timing hangs off
// its duration. Scene images run sequentially; an individual failure degrades
// that scene to a placeholder rather than failing the stage. Only when no
// scene ends up with a real image does the stage fail.
//
// When a render queue is configured, a successful run ends by claiming the
// video and queueing its render, so callers only trigger renders explicitly
// in queue-less deployments.
func (w *Worker) GenerateAssets(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	// Re-triggering a running or finished stage is a no-op
	if video.Status == models.StatusAssetsGenerating {
		log.Printf("[Assets] video %s: stage already running, ignoring trigger", videoID)
		return video, nil
	}
	if video.Status == models.StatusAssetsGenerated {
		log.Printf("[Assets] video %s: assets already generated, ignoring trigger", videoID)
		return video, nil
	}
	if err := rejectInactive(video); err != nil {
		return nil, err
	}
	if len(video.Scenes) == 0 {
		return nil, &services.Error{Kind: services.ErrInvalidInput, Message: "video has no storyboard"}
	}
	if video.Script == nil || *video.Script == "" {
		return nil, &services.Error{Kind: services.ErrInvalidInput, Message: "video has no script"}
	}

	if err := w.store.UpdateVideoStatus(ctx, videoID, models.StatusAssetsGenerating); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	stageCtx, cancel := context.WithTimeout(ctx, assetsTimeout)
	defer cancel()

	// --- Narration ---
	log.Printf("[Assets] video %s: generating narration...", videoID)

	var ttsResp *services.TTSResponse
	err = withRetry(stageCtx, "narration synthesis", 2, func(c context.Context) error {
		var speechErr error
		ttsResp, speechErr = w.tts.GenerateSpeech(c, *video.Script)
		return speechErr
	})
	if err != nil {
		return w.failAssets(ctx, videoID, fmt.Sprintf("narration synthesis failed: %v", err))
	}

	audioKey := storage.AudioKey(videoID)
	if err := w.uploadWithLimit(stageCtx, "narration audio", func() error {
		return w.blobs.Upload(stageCtx, audioKey, ttsResp.AudioData, "audio/mpeg")
	}); err != nil {
		return w.failAssets(ctx, videoID, fmt.Sprintf("failed to upload narration audio: %v", err))
	}

	audioDuration := ttsResp.DurationSeconds
	if err := w.store.SetVideoAudio(ctx, videoID, w.blobs.GetPublicURL(audioKey), audioDuration); err != nil {
		return nil, fmt.Errorf("failed to save narration: %w", err)
	}

	log.Printf("[Assets] video %s: narration ready (%d bytes, %.1fs)", videoID, len(ttsResp.AudioData), audioDuration)

	// --- Scene timing ---
	scenes := video.Scenes
	durations, err := computeSceneDurations(audioDuration, len(scenes))
	if err != nil {
		return nil, err
	}
	for i := range scenes {
		scenes[i].DurationSeconds = durations[i]
		scenes[i].ImageURL = nil
		scenes[i].IsPlaceholder = false
		scenes[i].PlaceholderReason = nil
	}
	if err := w.store.UpdateVideoScenes(ctx, videoID, scenes); err != nil {
		return nil, fmt.Errorf("failed to save scene timing: %w", err)
	}

	// --- Scene images ---
	var (
		quotaTripped   bool
		placeholderURL string
	)

	for i := range scenes {
		// Cancellation checkpoint between scenes
		if stopped, err := w.cancelRequested(ctx, videoID); err != nil {
			return nil, err
		} else if stopped {
			log.Printf("[Assets] video %s: cancelled after %d/%d scenes", videoID, i, len(scenes))
			return w.store.GetVideo(ctx, videoID)
		}

		if quotaTripped {
			// A tripped quota poisons every remaining call this run
			w.applyPlaceholder(stageCtx, videoID, scenes, i, "not_attempted", &placeholderURL)
			w.bumpProgress(ctx, videoID, i+1, len(scenes))
			continue
		}

		log.Printf("[Assets] video %s: generating image %d/%d...", videoID, i+1, len(scenes))

		prompt := services.SanitizePrompt(scenes[i].ImagePrompt)
		data, genErr := w.generateSceneImage(stageCtx, videoID, i, prompt)
		if genErr != nil {
			kind := services.KindOf(genErr)
			if kind == services.ErrInvalidCredentials {
				log.Printf("[Assets] video %s: image provider credentials rejected: %v", videoID, genErr)
				return w.failAssets(ctx, videoID, fmt.Sprintf("image provider credentials rejected: %v", genErr))
			}
			if kind == services.ErrQuotaExceeded {
				quotaTripped = true
			}
			log.Printf("[Assets] video %s: scene %d failed (%s), using placeholder: %v", videoID, i, kind, genErr)
			w.applyPlaceholder(stageCtx, videoID, scenes, i, string(kind), &placeholderURL)
			w.bumpProgress(ctx, videoID, i+1, len(scenes))
			continue
		}

		imageKey := storage.ImageKey(videoID, i)
		if err := w.uploadWithLimit(stageCtx, fmt.Sprintf("scene %d image", i), func() error {
			return w.blobs.Upload(stageCtx, imageKey, data, "image/png")
		}); err != nil {
			log.Printf("[Assets] video %s: scene %d upload failed, using placeholder: %v", videoID, i, err)
			w.applyPlaceholder(stageCtx, videoID, scenes, i, string(services.ErrStore), &placeholderURL)
			w.bumpProgress(ctx, videoID, i+1, len(scenes))
			continue
		}

		scenes[i].ImageURL = strPtr(w.blobs.GetPublicURL(imageKey))
		scenes[i].IsPlaceholder = false
		scenes[i].PlaceholderReason = nil

		if err := w.store.UpdateVideoScenes(ctx, videoID, scenes); err != nil {
			return nil, fmt.Errorf("failed to save scene %d: %w", i, err)
		}
		w.bumpProgress(ctx, videoID, i+1, len(scenes))
	}

	// A slideshow of nothing but placeholders is not worth rendering.
	real := 0
	var sceneFailures []string
	for i := range scenes {
		if scenes[i].IsPlaceholder {
			reason := "unknown"
			if scenes[i].PlaceholderReason != nil {
				reason = *scenes[i].PlaceholderReason
			}
			sceneFailures = append(sceneFailures, fmt.Sprintf("scene %d: %s", i, reason))
		} else if scenes[i].ImageURL != nil {
			real++
		}
	}
	if real == 0 {
		return w.failAssets(ctx, videoID, fmt.Sprintf("all scenes failed: %s", strings.Join(sceneFailures, "; ")))
	}

	// --- Captions ---
	log.Printf("[Assets] video %s: generating captions...", videoID)

	var segments []services.CaptionSegment
	err = withRetry(stageCtx, "transcription", 2, func(c context.Context) error {
		var tErr error
		segments, tErr = w.transcriber.Transcribe(c, ttsResp.AudioData)
		return tErr
	})
	if err != nil {
		log.Printf("[Assets] video %s: transcription failed, splitting script instead: %v", videoID, err)
		segments = services.SplitCaptions(*video.Script, audioDuration)
	}

	srt := services.BuildSRT(segments)
	captionsKey := storage.CaptionsKey(videoID)
	if err := w.uploadWithLimit(stageCtx, "captions", func() error {
		return w.blobs.Upload(stageCtx, captionsKey, []byte(srt), "application/x-subrip")
	}); err != nil {
		return w.failAssets(ctx, videoID, fmt.Sprintf("failed to upload captions: %v", err))
	}
	if err := w.store.SetVideoCaptions(ctx, videoID, w.blobs.GetPublicURL(captionsKey)); err != nil {
		return nil, fmt.Errorf("failed to save captions: %w", err)
	}

	// --- Finish ---
	if err := w.store.SetVideoAssetsGenerated(ctx, videoID, scenes.ImageURLs()); err != nil {
		return nil, fmt.Errorf("failed to finish asset stage: %w", err)
	}

	log.Printf("[Assets] video %s: assets ready (%d real images, %d placeholders)", videoID, real, len(scenes)-real)

	w.maybeEnqueueRender(ctx, videoID)

	return w.store.GetVideo(ctx, videoID)
}

// maybeEnqueueRender advances a finished asset stage straight into the render
// queue when one is configured. The video is claimed before it is enqueued,
// so an explicit render trigger arriving in between cannot queue the same
// render twice.
func (w *Worker) maybeEnqueueRender(ctx context.Context, videoID uuid.UUID) {
	if w.queue == nil {
		return
	}
	if _, err := w.BeginRender(ctx, videoID); err != nil {
		log.Printf("[Assets] video %s: not queueing render: %v", videoID, err)
		return
	}
	if err := w.queue.EnqueueRender(ctx, videoID); err != nil {
		log.Printf("[Assets] video %s: failed to enqueue render: %v", videoID, err)
		if dbErr := w.store.UpdateVideoError(ctx, videoID, models.StatusRenderFailed, fmt.Sprintf("failed to enqueue render: %v", err)); dbErr != nil {
			log.Printf("[Assets] video %s: failed to record enqueue failure: %v", videoID, dbErr)
		}
		return
	}
	log.Printf("[Assets] video %s: render queued", videoID)
}

// RegenerateScene redoes one scene's image in place. Timing is left alone:
// retiming a single scene would shift every caption cue after it.
func (w *Worker) RegenerateScene(ctx context.Context, videoID uuid.UUID, sceneIndex int) (*models.Video, error) {
	video, err := w.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	if err := rejectInactive(video); err != nil {
		return nil, err
	}
	if len(video.Scenes) == 0 {
		return nil, &services.Error{Kind: services.ErrInvalidInput, Message: "video has no storyboard"}
	}
	if sceneIndex < 0 || sceneIndex >= len(video.Scenes) {
		return nil, &services.Error{
			Kind:    services.ErrInvalidInput,
			Message: fmt.Sprintf("scene index %d out of range (0-%d)", sceneIndex, len(video.Scenes)-1),
		}
	}
	switch video.Status {
	case models.StatusAssetsGenerated, models.StatusAssetsFailed, models.StatusRenderFailed, models.StatusCompleted:
	default:
		return nil, &services.Error{
			Kind:    services.ErrInvalidInput,
			Message: fmt.Sprintf("scenes can only be regenerated after asset generation (status %s)", video.Status),
		}
	}

	stageCtx, cancel := context.WithTimeout(ctx, sceneTimeout)
	defer cancel()

	scenes := video.Scenes
	prompt := services.SanitizePrompt(scenes[sceneIndex].ImagePrompt)

	log.Printf("[Assets] video %s: regenerating scene %d...", videoID, sceneIndex)

	data, genErr := w.generateSceneImage(stageCtx, videoID, sceneIndex, prompt)
	if genErr != nil {
		kind := services.KindOf(genErr)
		log.Printf("[Assets] video %s: scene %d regeneration failed (%s): %v", videoID, sceneIndex, kind, genErr)
		var placeholderURL string
		w.applyPlaceholder(stageCtx, videoID, scenes, sceneIndex, string(kind), &placeholderURL)
		return w.store.GetVideo(ctx, videoID)
	}

	imageKey := storage.ImageKey(videoID, sceneIndex)
	if err := w.uploadWithLimit(stageCtx, fmt.Sprintf("scene %d image", sceneIndex), func() error {
		return w.blobs.Upload(stageCtx, imageKey, data, "image/png")
	}); err != nil {
		return nil, fmt.Errorf("failed to upload regenerated scene: %w", err)
	}

	scenes[sceneIndex].ImageURL = strPtr(w.blobs.GetPublicURL(imageKey))
	scenes[sceneIndex].IsPlaceholder = false
	scenes[sceneIndex].PlaceholderReason = nil

	if err := w.store.UpdateVideoScenes(ctx, videoID, scenes); err != nil {
		return nil, fmt.Errorf("failed to save regenerated scene: %w", err)
	}

	// A successful regeneration makes any rendered output stale and can lift
	// an assets_failed video back to generated.
	if err := w.store.SetVideoAssetsGenerated(ctx, videoID, scenes.ImageURLs()); err != nil {
		return nil, fmt.Errorf("failed to refresh asset state: %w", err)
	}

	log.Printf("[Assets] video %s: scene %d regenerated", videoID, sceneIndex)
	return w.store.GetVideo(ctx, videoID)
}

// generateSceneImage tries the primary provider with one retry, then the
// fallback provider. Quota and credential failures skip the fallback since
// burning more calls cannot help them.
func (w *Worker) generateSceneImage(ctx context.Context, videoID uuid.UUID, sceneIndex int, prompt string) ([]byte, error) {
	var data []byte
	primaryErr := withRetry(ctx, fmt.Sprintf("scene %d image", sceneIndex), 2, func(c context.Context) error {
		var err error
		data, err = w.images.GenerateImage(c, prompt)
		return err
	})
	if primaryErr == nil {
		return data, nil
	}

	kind := services.KindOf(primaryErr)
	if kind == services.ErrQuotaExceeded || kind == services.ErrInvalidCredentials {
		return nil, primaryErr
	}
	if w.fallback == nil {
		return nil, primaryErr
	}

	log.Printf("[Assets] video %s: scene %d primary provider failed (%s), trying fallback", videoID, sceneIndex, kind)

	data, fallbackErr := w.fallback.GenerateImage(ctx, prompt)
	if fallbackErr != nil {
		log.Printf("[Assets] video %s: scene %d fallback also failed: %v", videoID, sceneIndex, fallbackErr)
		fkind := services.KindOf(fallbackErr)
		if fkind == services.ErrQuotaExceeded || fkind == services.ErrInvalidCredentials {
			return nil, fallbackErr
		}
		// Report the primary failure; the fallback was best-effort.
		return nil, primaryErr
	}
	return data, nil
}

// applyPlaceholder marks a scene as placeholder-backed and points it at the
// shared placeholder frame, synthesizing and uploading that frame on first
// use. If even the placeholder cannot be stored the scene keeps a nil URL.
func (w *Worker) applyPlaceholder(ctx context.Context, videoID uuid.UUID, scenes models.Scenes, i int, reason string, placeholderURL *string) {
	scenes[i].IsPlaceholder = true
	scenes[i].PlaceholderReason = strPtr(reason)
	scenes[i].ImageURL = nil

	if *placeholderURL == "" {
		data, err := services.PlaceholderPNG(services.FrameWidth, services.FrameHeight)
		if err != nil {
			log.Printf("[Assets] video %s: failed to synthesize placeholder: %v", videoID, err)
		} else {
			key := storage.PlaceholderKey(videoID)
			uploadErr := w.uploadWithLimit(ctx, "placeholder image", func() error {
				return w.blobs.Upload(ctx, key, data, "image/png")
			})
			if uploadErr != nil {
				log.Printf("[Assets] video %s: failed to upload placeholder: %v", videoID, uploadErr)
			} else {
				*placeholderURL = w.blobs.GetPublicURL(key)
			}
		}
	}
	if *placeholderURL != "" {
		scenes[i].ImageURL = strPtr(*placeholderURL)
	}

	if err := w.store.UpdateVideoScenes(ctx, videoID, scenes); err != nil {
		log.Printf("[Assets] video %s: failed to persist placeholder for scene %d: %v", videoID, i, err)
	}
}

// bumpProgress counts every resolved scene, placeholder or not.
func (w *Worker) bumpProgress(ctx context.Context, videoID uuid.UUID, done, total int) {
	percent := int(math.Round(float64(done) / float64(total) * 100))
	if err := w.store.UpdateVideoUploadProgress(ctx, videoID, percent); err != nil {
		log.Printf("[Assets] video %s: failed to update progress: %v", videoID, err)
	}
}

func (w *Worker) failAssets(ctx context.Context, videoID uuid.UUID, message string) (*models.Video, error) {
	if err := w.store.UpdateVideoError(ctx, videoID, models.StatusAssetsFailed, message); err != nil {
		return nil, fmt.Errorf("failed to record asset failure: %w", err)
	}
	return w.store.GetVideo(ctx, videoID)
}
