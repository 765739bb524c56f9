package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/db"
	"github.com/storyreel/backend/internal/models"
)

// How often the progress stream re-reads the record.
const progressPollInterval = time.Second

// StreamProgress handles GET /v1/videos/{id}/progress as a server-sent event
// stream. A snapshot goes out on every poll, so clients may see the same
// state twice; the stream closes once the video reaches a terminal status or
// the client disconnects. A record that is not visible yet streams a
// synthetic "initializing" snapshot instead of an error, since clients
// routinely open the stream before the create commit lands.
func (h *Handler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid video ID")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	for {
		video, err := h.db.GetVideo(r.Context(), videoID)
		switch {
		case errors.Is(err, db.ErrNotFound):
			if writeProgressEvent(w, models.PendingProgress()) != nil {
				return
			}
			flusher.Flush()
		case err != nil:
			if r.Context().Err() != nil {
				return
			}
			// Transient read failures skip a beat rather than kill the stream
			log.Printf("[Progress] video %s: read failed: %v", videoID, err)
		default:
			if writeProgressEvent(w, video.Progress()) != nil {
				return
			}
			flusher.Flush()
			if video.Status.IsTerminal() {
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeProgressEvent(w http.ResponseWriter, progress models.Progress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
