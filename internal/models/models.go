package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Enums

// VideoStatus tracks a video through the generation pipeline. Transitions
// only move forward; a failed stage may be re-entered by an explicit retry.
type VideoStatus string

const (
	StatusCreated              VideoStatus = "created"
	StatusScriptGenerating     VideoStatus = "script_generating"
	StatusScriptGenerated      VideoStatus = "script_generated"
	StatusStoryboardGenerating VideoStatus = "storyboard_generating"
	StatusStoryboardGenerated  VideoStatus = "storyboard_generated"
	StatusStoryboardFailed     VideoStatus = "storyboard_failed"
	StatusAssetsGenerating     VideoStatus = "assets_generating"
	StatusAssetsGenerated      VideoStatus = "assets_generated"
	StatusAssetsFailed         VideoStatus = "assets_failed"
	StatusRendering            VideoStatus = "rendering"
	StatusCompleted            VideoStatus = "completed"
	StatusRenderFailed         VideoStatus = "render_failed"
	StatusCancelled            VideoStatus = "cancelled"
)

// IsFailure reports whether the status is a failed stage that carries an
// error message and accepts a retry.
func (s VideoStatus) IsFailure() bool {
	switch s {
	case StatusStoryboardFailed, StatusAssetsFailed, StatusRenderFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the pipeline has stopped for this video.
// Failed stages count as terminal until a caller retries them.
func (s VideoStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s.IsFailure()
}

// IsBusy reports whether an orchestrator stage currently owns this video.
func (s VideoStatus) IsBusy() bool {
	switch s {
	case StatusScriptGenerating, StatusStoryboardGenerating, StatusAssetsGenerating, StatusRendering:
		return true
	}
	return false
}

// Scene is one storyboard entry: a narration beat paired with one image.
type Scene struct {
	Index             int     `json:"index"`
	NarrationText     string  `json:"narration_text"`
	ImagePrompt       string  `json:"image_prompt"`
	ImageURL          *string `json:"image_url,omitempty"`
	IsPlaceholder     bool    `json:"is_placeholder"`
	PlaceholderReason *string `json:"placeholder_reason,omitempty"`
	DurationSeconds   float64 `json:"duration_seconds"`
}

// Scenes is stored as a PostgreSQL JSONB column.
type Scenes []Scene

func (s Scenes) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *Scenes) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan scenes: expected []byte, got %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Models

// Video is the job record for one short-form video generation run.
type Video struct {
	ID                    uuid.UUID      `json:"id"`
	Status                VideoStatus    `json:"status"`
	InputText             string         `json:"input_text"`
	Script                *string        `json:"script,omitempty"`
	Scenes                Scenes         `json:"scenes,omitempty"`
	ImageURLs             pq.StringArray `json:"image_urls,omitempty"`
	AudioURL              *string        `json:"audio_url,omitempty"`
	CaptionsURL           *string        `json:"captions_url,omitempty"`
	FinalVideoURL         *string        `json:"final_video_url,omitempty"`
	TotalDurationSeconds  *float64       `json:"total_duration_seconds,omitempty"`
	UploadProgressPercent *int           `json:"upload_progress_percent,omitempty"`
	CaptionsOmitted       bool           `json:"captions_omitted"`
	ErrorMessage          *string        `json:"error_message,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// RealImageCount counts scenes holding a generated (non-placeholder) image.
func (v *Video) RealImageCount() int {
	count := 0
	for i := range v.Scenes {
		if v.Scenes[i].ImageURL != nil && !v.Scenes[i].IsPlaceholder {
			count++
		}
	}
	return count
}

// ImageURLs returns the per-scene image URLs in storyboard order, skipping
// scenes that have no image yet.
func (s Scenes) ImageURLs() pq.StringArray {
	urls := make(pq.StringArray, 0, len(s))
	for i := range s {
		if s[i].ImageURL != nil {
			urls = append(urls, *s[i].ImageURL)
		}
	}
	return urls
}

// DTOs for API requests and responses

type CreateVideoRequest struct {
	InputText string `json:"input_text"`
}

type UpdateScriptRequest struct {
	Script string `json:"script"`
}

type ListVideosResponse struct {
	Videos []*Video `json:"videos"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}
