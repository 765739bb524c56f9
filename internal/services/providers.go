package services

import "context"

// ---------------------------------------------------------------------------
// Media provider capabilities
// The pipeline only sees these interfaces; concrete adapters classify their
// own failures into *Error before returning them.
// ---------------------------------------------------------------------------

// ScriptGenerator writes the narration script for a topic.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, topic string) (string, error)
}

// StoryboardGenerator breaks a script into ordered scenes.
type StoryboardGenerator interface {
	GenerateStoryboard(ctx context.Context, script string) ([]ScenePlan, error)
}

// ScenePlan is one storyboard entry as the model returns it.
type ScenePlan struct {
	Narration   string `json:"narration"`
	ImagePrompt string `json:"image_prompt"`
}

// ImageGenerator produces one encoded image for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Transcriber converts narration audio into timed caption segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) ([]CaptionSegment, error)
}
