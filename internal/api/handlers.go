package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/db"
	"github.com/storyreel/backend/internal/models"
	"github.com/storyreel/backend/internal/queue"
	"github.com/storyreel/backend/internal/services"
	"github.com/storyreel/backend/internal/storage"
	"github.com/storyreel/backend/internal/worker"
)

type Handler struct {
	db      *db.DB
	queue   *queue.Queue // nil when renders run inline
	worker  *worker.Worker
	storage *storage.Storage
}

func NewHandler(database *db.DB, q *queue.Queue, wrk *worker.Worker, stor *storage.Storage) *Handler {
	return &Handler{
		db:      database,
		queue:   q,
		worker:  wrk,
		storage: stor,
	}
}

// CreateVideo handles POST /v1/videos. Creating a video immediately kicks off
// script generation; the client follows along via the progress stream.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inputText := strings.TrimSpace(req.InputText)
	if inputText == "" {
		respondError(w, http.StatusBadRequest, "input_text is required")
		return
	}

	video := &models.Video{
		ID:        uuid.New(),
		Status:    models.StatusCreated,
		InputText: inputText,
	}

	if err := h.db.CreateVideo(r.Context(), video); err != nil {
		log.Printf("[API] failed to create video: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create video")
		return
	}

	go func() {
		if _, err := h.worker.GenerateScript(context.Background(), video.ID); err != nil {
			log.Printf("[API] script generation for video %s rejected: %v", video.ID, err)
		}
	}()

	respondJSON(w, http.StatusCreated, video)
}

// ListVideos handles GET /v1/videos
// Query params:
//   - status: filter by video status
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		switch models.VideoStatus(statusFilter) {
		case models.StatusCreated, models.StatusScriptGenerating, models.StatusScriptGenerated,
			models.StatusStoryboardGenerating, models.StatusStoryboardGenerated, models.StatusStoryboardFailed,
			models.StatusAssetsGenerating, models.StatusAssetsGenerated, models.StatusAssetsFailed,
			models.StatusRendering, models.StatusCompleted, models.StatusRenderFailed, models.StatusCancelled:
			// valid
		default:
			respondError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.db.CountVideos(r.Context(), statusFilter)
	if err != nil {
		log.Printf("[API] failed to count videos: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to count videos")
		return
	}

	videos, err := h.db.ListVideos(r.Context(), statusFilter, limit, offset)
	if err != nil {
		log.Printf("[API] failed to list videos: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}
	if videos == nil {
		videos = []*models.Video{}
	}

	respondJSON(w, http.StatusOK, models.ListVideosResponse{
		Videos: videos,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetVideo handles GET /v1/videos/{id}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// RegenerateScript handles POST /v1/videos/{id}/script. Rewrites the script
// from the original input text, invalidating everything downstream.
func (h *Handler) RegenerateScript(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	if !h.requireIdle(w, video) {
		return
	}

	go func() {
		if _, err := h.worker.GenerateScript(context.Background(), video.ID); err != nil {
			log.Printf("[API] script regeneration for video %s rejected: %v", video.ID, err)
		}
	}()

	respondJSON(w, http.StatusAccepted, video)
}

// UpdateScript handles PATCH /v1/videos/{id}/script. Lets the user edit the
// narration before the storyboard stage runs.
func (h *Handler) UpdateScript(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	var req models.UpdateScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	script := strings.TrimSpace(req.Script)
	if script == "" {
		respondError(w, http.StatusBadRequest, "script is required")
		return
	}
	if !h.requireIdle(w, video) {
		return
	}

	if err := h.db.SetVideoScript(r.Context(), video.ID, script); err != nil {
		log.Printf("[API] failed to update script for video %s: %v", video.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to update script")
		return
	}

	updated, err := h.db.GetVideo(r.Context(), video.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// GenerateStoryboard handles POST /v1/videos/{id}/storyboard
func (h *Handler) GenerateStoryboard(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	if !h.requireIdle(w, video) {
		return
	}
	if video.Script == nil || *video.Script == "" {
		respondError(w, http.StatusBadRequest, "video has no script")
		return
	}

	go func() {
		if _, err := h.worker.GenerateStoryboard(context.Background(), video.ID); err != nil {
			log.Printf("[API] storyboard generation for video %s rejected: %v", video.ID, err)
		}
	}()

	respondJSON(w, http.StatusAccepted, video)
}

// GenerateAssets handles POST /v1/videos/{id}/assets. Triggering an already
// running or finished asset stage is a no-op that returns the current state.
func (h *Handler) GenerateAssets(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	switch video.Status {
	case models.StatusAssetsGenerating:
		respondJSON(w, http.StatusAccepted, video)
		return
	case models.StatusAssetsGenerated:
		respondJSON(w, http.StatusOK, video)
		return
	}
	if !h.requireIdle(w, video) {
		return
	}
	if len(video.Scenes) == 0 {
		respondError(w, http.StatusBadRequest, "video has no storyboard")
		return
	}

	go func() {
		if _, err := h.worker.GenerateAssets(context.Background(), video.ID); err != nil {
			log.Printf("[API] asset generation for video %s rejected: %v", video.ID, err)
		}
	}()

	respondJSON(w, http.StatusAccepted, video)
}

// RegenerateScene handles POST /v1/videos/{id}/scenes/{index}
func (h *Handler) RegenerateScene(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}

	sceneIndex, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid scene index")
		return
	}
	if !h.requireIdle(w, video) {
		return
	}
	if sceneIndex < 0 || sceneIndex >= len(video.Scenes) {
		respondError(w, http.StatusBadRequest, "Scene index out of range")
		return
	}
	switch video.Status {
	case models.StatusAssetsGenerated, models.StatusAssetsFailed, models.StatusRenderFailed, models.StatusCompleted:
	default:
		respondError(w, http.StatusConflict, "Scenes can only be regenerated after asset generation")
		return
	}

	go func() {
		if _, err := h.worker.RegenerateScene(context.Background(), video.ID, sceneIndex); err != nil {
			log.Printf("[API] scene regeneration for video %s rejected: %v", video.ID, err)
		}
	}()

	respondJSON(w, http.StatusAccepted, video)
}

// RenderVideo handles POST /v1/videos/{id}/render. The claim happens
// synchronously so precondition failures come back as a 4xx instead of
// silently landing in the record; the render itself runs in the background.
func (h *Handler) RenderVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	if video.Status == models.StatusRendering {
		respondError(w, http.StatusConflict, "Render already in progress")
		return
	}

	claimed, err := h.worker.BeginRender(r.Context(), video.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if h.queue != nil {
		if err := h.queue.EnqueueRender(r.Context(), video.ID); err != nil {
			log.Printf("[API] failed to enqueue render for video %s: %v", video.ID, err)
			if dbErr := h.db.UpdateVideoError(r.Context(), video.ID, models.StatusRenderFailed, "failed to enqueue render"); dbErr != nil {
				log.Printf("[API] failed to record enqueue failure for video %s: %v", video.ID, dbErr)
			}
			respondError(w, http.StatusInternalServerError, "Failed to enqueue render")
			return
		}
	} else {
		go func() {
			if _, err := h.worker.RenderVideo(context.Background(), video.ID); err != nil {
				log.Printf("[API] render for video %s failed: %v", video.ID, err)
			}
		}()
	}

	respondJSON(w, http.StatusAccepted, claimed)
}

// CancelVideo handles POST /v1/videos/{id}/cancel
func (h *Handler) CancelVideo(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid video ID")
		return
	}

	video, err := h.worker.Cancel(r.Context(), videoID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, video)
}

// DownloadVideo handles GET /v1/videos/{id}/download
func (h *Handler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := h.loadVideo(w, r)
	if !ok {
		return
	}
	if video.FinalVideoURL == nil {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	// Signed URL valid for 1 hour
	signedURL, err := h.storage.GetSignedURL(r.Context(), storage.FinalVideoKey(video.ID), 3600)
	if err != nil {
		log.Printf("[API] failed to sign download URL for video %s: %v", video.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}

	http.Redirect(w, r, signedURL, http.StatusTemporaryRedirect)
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.queue != nil {
		if depth, err := h.queue.RenderQueueLength(r.Context()); err == nil {
			resp["render_queue_depth"] = depth
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Helper methods

// loadVideo parses the {id} URL param and fetches the record, writing the
// error response itself when either step fails.
func (h *Handler) loadVideo(w http.ResponseWriter, r *http.Request) (*models.Video, bool) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid video ID")
		return nil, false
	}

	video, err := h.db.GetVideo(r.Context(), videoID)
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return video, true
}

// requireIdle rejects stage triggers while another stage holds the video.
// The worker re-checks on its own; this check just gives the caller a
// useful status code instead of a silent background rejection.
func (h *Handler) requireIdle(w http.ResponseWriter, video *models.Video) bool {
	if video.Status == models.StatusCancelled {
		respondError(w, http.StatusConflict, "Video generation was cancelled")
		return false
	}
	if video.Status.IsBusy() {
		respondError(w, http.StatusConflict, "Video is busy ("+string(video.Status)+")")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps store and pipeline errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}

	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		switch svcErr.Kind {
		case services.ErrInvalidInput:
			respondError(w, http.StatusBadRequest, svcErr.Message)
		case services.ErrQuotaExceeded:
			respondError(w, http.StatusTooManyRequests, svcErr.Message)
		default:
			respondError(w, http.StatusBadGateway, svcErr.Message)
		}
		return
	}

	log.Printf("[API] internal error: %v", err)
	respondError(w, http.StatusInternalServerError, "Internal error")
}
