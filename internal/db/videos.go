package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/storyreel/backend/internal/models"
)

// ErrNotFound is returned when a video id matches no row.
var ErrNotFound = errors.New("video not found")

const videoColumns = `
	id, status, input_text, script, scenes, image_urls,
	audio_url, captions_url, final_video_url,
	total_duration_seconds, upload_progress_percent, captions_omitted,
	error_message, created_at, updated_at
`

func scanVideo(row interface{ Scan(...any) error }) (*models.Video, error) {
	video := &models.Video{}
	err := row.Scan(
		&video.ID, &video.Status, &video.InputText, &video.Script,
		&video.Scenes, &video.ImageURLs,
		&video.AudioURL, &video.CaptionsURL, &video.FinalVideoURL,
		&video.TotalDurationSeconds, &video.UploadProgressPercent, &video.CaptionsOmitted,
		&video.ErrorMessage, &video.CreatedAt, &video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return video, nil
}

func (db *DB) CreateVideo(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (
			id, status, input_text
		) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		video.ID, video.Status, video.InputText,
	).Scan(&video.CreatedAt, &video.UpdatedAt)
}

func (db *DB) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	video, err := scanVideo(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return video, nil
}

// ListVideos returns videos ordered by creation date (newest first).
// Supports optional status filter, limit, and offset for pagination.
func (db *DB) ListVideos(ctx context.Context, status string, limit, offset int) ([]*models.Video, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseSelect := `SELECT ` + videoColumns + ` FROM videos`

	if status != "" {
		query := baseSelect + ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = db.QueryContext(ctx, query, status, limit, offset)
	} else {
		query := baseSelect + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = db.QueryContext(ctx, query, limit, offset)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	return videos, nil
}

// CountVideos returns the total number of videos, optionally filtered by status.
func (db *DB) CountVideos(ctx context.Context, status string) (int, error) {
	var count int
	if status != "" {
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos WHERE status = $1`, status).Scan(&count)
		return count, err
	}
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count)
	return count, err
}

// UpdateVideoStatus moves a video to a new status and clears any stale error
// text from a previous failed run.
func (db *DB) UpdateVideoStatus(ctx context.Context, id uuid.UUID, status models.VideoStatus) error {
	query := `UPDATE videos SET status = $1, error_message = NULL, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

// UpdateVideoError records a failure: the failure status plus the message.
func (db *DB) UpdateVideoError(ctx context.Context, id uuid.UUID, status models.VideoStatus, errorMessage string) error {
	query := `
		UPDATE videos
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, status, errorMessage, id)
	return err
}

// SetVideoScript stores a new script and invalidates everything downstream
// of it: storyboard, assets, and the rendered output.
func (db *DB) SetVideoScript(ctx context.Context, id uuid.UUID, script string) error {
	query := `
		UPDATE videos
		SET script = $1, status = $2,
			scenes = NULL, image_urls = NULL,
			audio_url = NULL, captions_url = NULL, final_video_url = NULL,
			total_duration_seconds = NULL, upload_progress_percent = NULL,
			captions_omitted = FALSE, error_message = NULL,
			updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, script, models.StatusScriptGenerated, id)
	return err
}

// SetVideoStoryboard stores a fresh storyboard and invalidates prior assets.
func (db *DB) SetVideoStoryboard(ctx context.Context, id uuid.UUID, scenes models.Scenes) error {
	query := `
		UPDATE videos
		SET scenes = $1, status = $2,
			image_urls = NULL,
			audio_url = NULL, captions_url = NULL, final_video_url = NULL,
			total_duration_seconds = NULL, upload_progress_percent = NULL,
			captions_omitted = FALSE, error_message = NULL,
			updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, scenes, models.StatusStoryboardGenerated, id)
	return err
}

// UpdateVideoScenes persists scene mutations mid-pipeline without touching
// the status.
func (db *DB) UpdateVideoScenes(ctx context.Context, id uuid.UUID, scenes models.Scenes) error {
	query := `UPDATE videos SET scenes = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, scenes, id)
	return err
}

// SetVideoAudio records the uploaded narration and its measured duration.
func (db *DB) SetVideoAudio(ctx context.Context, id uuid.UUID, audioURL string, durationSeconds float64) error {
	query := `
		UPDATE videos
		SET audio_url = $1, total_duration_seconds = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, audioURL, durationSeconds, id)
	return err
}

// SetVideoCaptions records the uploaded caption file.
func (db *DB) SetVideoCaptions(ctx context.Context, id uuid.UUID, captionsURL string) error {
	query := `UPDATE videos SET captions_url = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, captionsURL, id)
	return err
}

// UpdateVideoUploadProgress tracks how far the asset stage has come, in percent.
func (db *DB) UpdateVideoUploadProgress(ctx context.Context, id uuid.UUID, percent int) error {
	query := `UPDATE videos SET upload_progress_percent = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, percent, id)
	return err
}

// SetVideoAssetsGenerated closes the asset stage with the final image list.
// Any previously rendered output is stale once assets change, so the final
// video URL is dropped along the way.
func (db *DB) SetVideoAssetsGenerated(ctx context.Context, id uuid.UUID, imageURLs pq.StringArray) error {
	query := `
		UPDATE videos
		SET status = $1, image_urls = $2,
			final_video_url = NULL, captions_omitted = FALSE,
			error_message = NULL, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.StatusAssetsGenerated, imageURLs, id)
	return err
}

// SetVideoCompleted closes the render stage with the published video.
func (db *DB) SetVideoCompleted(ctx context.Context, id uuid.UUID, finalVideoURL string, totalDurationSeconds float64, captionsOmitted bool) error {
	query := `
		UPDATE videos
		SET status = $1, final_video_url = $2, total_duration_seconds = $3,
			captions_omitted = $4, error_message = NULL, updated_at = NOW()
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.StatusCompleted, finalVideoURL, totalDurationSeconds, captionsOmitted, id)
	return err
}
