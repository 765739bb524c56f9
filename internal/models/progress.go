package models

import "fmt"

// Progress is the user-facing snapshot of how far a video has advanced.
// Percentages only move forward while a video is healthy; failure states
// freeze at the stage they died in and surface the error message.
type Progress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

const (
	progressCreated              = 5
	progressScriptGenerating     = 10
	progressScriptGenerated      = 15
	progressStoryboardGenerating = 20
	progressStoryboardGenerated  = 30
	progressAssetsDone           = 80
	progressRendering            = 90
	progressCompleted            = 100
)

// PendingProgress is reported when a video record is not visible yet, for
// example when a progress stream is opened before the create commit lands.
func PendingProgress() Progress {
	return Progress{Percentage: 0, Message: "Initializing, please wait..."}
}

// Progress maps the record state onto a 0..100 scale. The assets stage
// interpolates between its band edges using UploadProgressPercent.
func (v *Video) Progress() Progress {
	switch v.Status {
	case StatusCreated:
		return Progress{progressCreated, "Initializing..."}
	case StatusScriptGenerating:
		return Progress{progressScriptGenerating, "Writing script..."}
	case StatusScriptGenerated:
		return Progress{progressScriptGenerated, "Script ready"}
	case StatusStoryboardGenerating:
		return Progress{progressStoryboardGenerating, "Building storyboard..."}
	case StatusStoryboardGenerated:
		return Progress{progressStoryboardGenerated, "Storyboard ready"}
	case StatusAssetsGenerating:
		pct, uploaded := v.assetsBandPercent()
		if uploaded > 0 {
			return Progress{pct, fmt.Sprintf("Uploading images (%d%% complete)", uploaded)}
		}
		return Progress{pct, "Generating narration and images..."}
	case StatusAssetsGenerated:
		return Progress{progressAssetsDone, "Assets ready"}
	case StatusRendering:
		return Progress{progressRendering, "Rendering final video..."}
	case StatusCompleted:
		return Progress{progressCompleted, "Your video is ready"}
	case StatusStoryboardFailed:
		return Progress{progressStoryboardGenerating, v.errorText()}
	case StatusAssetsFailed:
		pct, _ := v.assetsBandPercent()
		return Progress{pct, v.errorText()}
	case StatusRenderFailed:
		return Progress{progressRendering, v.errorText()}
	case StatusCancelled:
		return Progress{v.frozenPercent(), "Generation cancelled"}
	}
	return PendingProgress()
}

// assetsBandPercent interpolates the assets stage between 30 and 80 from the
// scene upload counter. Returns the overall percentage and the raw counter.
func (v *Video) assetsBandPercent() (int, int) {
	uploaded := 0
	if v.UploadProgressPercent != nil {
		uploaded = *v.UploadProgressPercent
	}
	if uploaded < 0 {
		uploaded = 0
	}
	if uploaded > 100 {
		uploaded = 100
	}
	band := progressAssetsDone - progressStoryboardGenerated
	return progressStoryboardGenerated + band*uploaded/100, uploaded
}

// frozenPercent picks the best-known percentage for a cancelled video from
// whichever artifacts it had produced before stopping.
func (v *Video) frozenPercent() int {
	switch {
	case v.FinalVideoURL != nil:
		return progressCompleted
	case v.CaptionsURL != nil:
		return progressAssetsDone
	case v.UploadProgressPercent != nil:
		pct, _ := v.assetsBandPercent()
		return pct
	case len(v.Scenes) > 0:
		return progressStoryboardGenerated
	case v.Script != nil:
		return progressScriptGenerated
	}
	return progressCreated
}

func (v *Video) errorText() string {
	if v.ErrorMessage != nil && *v.ErrorMessage != "" {
		return *v.ErrorMessage
	}
	return "Generation failed"
}
