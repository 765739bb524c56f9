package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// Bucket layout: everything for one video lives under videos/<id>/ so a
// re-run overwrites in place and cleanup is a single prefix.

// ImageKey is the object path for one scene's still image.
func ImageKey(videoID uuid.UUID, sceneIndex int) string {
	return fmt.Sprintf("videos/%s/images/scene_%03d.png", videoID, sceneIndex)
}

// PlaceholderKey is the object path for the shared placeholder frame. Scenes
// that could not get a real image all point at this one object.
func PlaceholderKey(videoID uuid.UUID) string {
	return fmt.Sprintf("videos/%s/images/placeholder.png", videoID)
}

// AudioKey is the object path for the narration audio.
func AudioKey(videoID uuid.UUID) string {
	return fmt.Sprintf("videos/%s/audio/narration.mp3", videoID)
}

// CaptionsKey is the object path for the caption file.
func CaptionsKey(videoID uuid.UUID) string {
	return fmt.Sprintf("videos/%s/captions/captions.srt", videoID)
}

// FinalVideoKey is the object path for the rendered video.
func FinalVideoKey(videoID uuid.UUID) string {
	return fmt.Sprintf("videos/%s/video/final.mp4", videoID)
}
