package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"os/exec"
	"path/filepath"
	"strings"
)

// Output / rendering constants: portrait 1080x1920 at 30fps
const (
	FrameWidth  = 1080
	FrameHeight = 1920
	videoFPS    = 30

	// The filter chain upscales stills to 2x the output frame before zoompan
	// samples them back down. Zoompan computes crop offsets in integer source
	// pixels, so the extra resolution smooths out pan jitter.
	supersample = 2

	// Breathing pulse: a subtle zoom oscillation layered on top of the primary
	// motion. The subject appears to gently pulse while background edges shift.
	// Amplitude: ±0.03 zoom at ~0.12 rad/frame ≈ one full breath every ~2 seconds.
	breathAmplitude = 0.03
	breathFrequency = 0.12

	// Encoder settings
	videoCRF     = "23"
	videoPreset  = "medium"
	audioBitrate = "192k"

	// After the last still, clone its final frame for a couple of seconds so
	// the video track always outlasts the narration; -shortest trims the result
	// back to the audio length.
	tailHoldSeconds = 2
)

// Subtitle burn-in style: bold white text with a black outline, bottom-center
const (
	subtitleFontName = "Noto Sans"
	subtitleFontSize = 16
	subtitleMarginV  = 90

	// libass colors are in &HAABBGGRR format (hex, note: BGR not RGB)
	subColorWhite = "&H00FFFFFF"
	subColorBlack = "&H00000000"
)

// ---------------------------------------------------------------------------
// Motion styles: one per render, chosen deterministically from the palette
// ---------------------------------------------------------------------------

// MotionStyle defines the Ken Burns motion applied across the whole slideshow
type MotionStyle string

const (
	MotionPushIn    MotionStyle = "push_in"    // Slow zoom toward center
	MotionPullBack  MotionStyle = "pull_back"  // Starts zoomed, pulls back wide
	MotionDriftUp   MotionStyle = "drift_up"   // Drifts bottom to top
	MotionDriftDown MotionStyle = "drift_down" // Drifts top to bottom
)

// motionPalette is the pool a render's motion style is drawn from
var motionPalette = []MotionStyle{
	MotionPushIn,
	MotionPullBack,
	MotionDriftUp,
	MotionDriftDown,
}

// MotionStyleFor picks the motion style for a render. The choice keys off the
// scene count so re-rendering the same job always produces the same command.
func MotionStyleFor(sceneCount int) MotionStyle {
	if sceneCount < 0 {
		sceneCount = 0
	}
	return motionPalette[sceneCount%len(motionPalette)]
}

// ---------------------------------------------------------------------------
// Concat list
// ---------------------------------------------------------------------------

// BuildConcatList renders the ffconcat manifest for the slideshow: one
// file/duration pair per scene. The final file line is repeated because the
// concat demuxer ignores the duration attached to the last entry otherwise.
func BuildConcatList(imagePaths []string, durations []float64) (string, error) {
	if len(imagePaths) == 0 {
		return "", fmt.Errorf("no scenes to concatenate")
	}
	if len(imagePaths) != len(durations) {
		return "", fmt.Errorf("scene count mismatch: %d images, %d durations", len(imagePaths), len(durations))
	}

	var sb strings.Builder
	sb.WriteString("ffconcat version 1.0\n")

	for i, path := range imagePaths {
		entry, err := concatPath(path)
		if err != nil {
			return "", err
		}
		if durations[i] <= 0 {
			return "", fmt.Errorf("scene %d has non-positive duration %.3f", i, durations[i])
		}
		fmt.Fprintf(&sb, "file '%s'\n", entry)
		fmt.Fprintf(&sb, "duration %.3f\n", durations[i])
	}

	last, err := concatPath(imagePaths[len(imagePaths)-1])
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "file '%s'\n", last)

	return sb.String(), nil
}

// concatPath normalizes a path for a concat manifest entry: absolute, forward
// slashes only, single quotes escaped. The demuxer treats backslashes as
// escape characters, so none may survive.
func concatPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("concat entry must be absolute: %s", path)
	}
	path = filepath.ToSlash(path)
	if strings.Contains(path, "\\") {
		return "", fmt.Errorf("concat entry contains backslash: %s", path)
	}
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path, nil
}

// ---------------------------------------------------------------------------
// Render command
// ---------------------------------------------------------------------------

// RenderSpec describes one render invocation. SubtitlesPath may be empty to
// skip the caption burn (used on the fallback attempt).
type RenderSpec struct {
	ConcatListPath string
	AudioPath      string
	SubtitlesPath  string
	OutputPath     string
	SceneCount     int
	TotalDuration  float64
}

// BuildRenderArgs assembles the full ffmpeg argument list for a render. The
// same spec always yields the same arguments.
//
// Filter order: supersampled scale and pad, zoompan motion with a breathing
// pulse, color grade, vignette, grain, tail hold, then captions. The caption
// burn must stay last so text is never distorted by the filters before it.
func BuildRenderArgs(spec RenderSpec) []string {
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", FrameWidth*supersample, FrameHeight*supersample),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", FrameWidth*supersample, FrameHeight*supersample),
		"setsar=1",
		buildMotionFilter(MotionStyleFor(spec.SceneCount), spec.TotalDuration),
		"eq=contrast=1.06:brightness=0.01:saturation=1.12",
		"vignette=angle=PI/5",
		"noise=alls=6:allf=t",
		fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%d", tailHoldSeconds),
	}

	if spec.SubtitlesPath != "" {
		escapedPath := escapeFFmpegFilterPath(spec.SubtitlesPath)
		forceStyle := fmt.Sprintf(
			"FontName=%s,FontSize=%d,PrimaryColour=%s,OutlineColour=%s,BorderStyle=1,Outline=2,Shadow=1,Bold=1,Alignment=2,MarginV=%d",
			subtitleFontName, subtitleFontSize, subColorWhite, subColorBlack, subtitleMarginV,
		)
		filters = append(filters, fmt.Sprintf("subtitles='%s':force_style='%s'", escapedPath, forceStyle))
	}

	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", spec.ConcatListPath,
		"-i", spec.AudioPath,
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-preset", videoPreset,
		"-crf", videoCRF,
		"-c:a", "aac",
		"-b:a", audioBitrate,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-shortest",
		"-y",
		spec.OutputPath,
	}
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg
// filter syntax. Filter strings treat colons, backslashes, and single quotes
// specially.
func escapeFFmpegFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// buildMotionFilter constructs the zoompan stage for a motion style. The
// expressions key off `on` (the output frame number), so the motion advances
// continuously across the whole slideshow rather than restarting per scene.
//
// The repeated x/y expressions keep the crop window centered:
//
//	x = "iw/2-(iw/zoom/2)"
//	y = "ih/2-(ih/zoom/2)"
func buildMotionFilter(style MotionStyle, totalDuration float64) string {
	totalFrames := int(math.Ceil(totalDuration * videoFPS))
	if totalFrames < videoFPS {
		totalFrames = videoFPS // minimum 1 second
	}

	// Gentle sine oscillation added to the base zoom
	breathExpr := fmt.Sprintf("%.3f*sin(on*%.3f)", breathAmplitude, breathFrequency)

	var zExpr, xExpr, yExpr string

	switch style {

	case MotionPushIn:
		// Zoom from 1.0 to 1.15 centered over the full video
		zExpr = fmt.Sprintf("1.0+0.15*on/%d+%s", totalFrames, breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"

	case MotionPullBack:
		// Zoom from 1.15 back to 1.0, a slow reveal
		zExpr = fmt.Sprintf("1.15-0.15*on/%d+%s", totalFrames, breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"

	case MotionDriftUp:
		// Fixed 1.1x zoom, camera drifts from bottom to top
		zExpr = fmt.Sprintf("1.1+%s", breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("(ih-ih/zoom)*(1-on/%d)", totalFrames)

	case MotionDriftDown:
		// Fixed 1.1x zoom, camera drifts from top to bottom
		zExpr = fmt.Sprintf("1.1+%s", breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("(ih-ih/zoom)*on/%d", totalFrames)

	default:
		zExpr = fmt.Sprintf("1.0+0.15*on/%d+%s", totalFrames, breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"
	}

	return fmt.Sprintf(
		"zoompan=z='%s':x='%s':y='%s':d=1:s=%dx%d:fps=%d",
		zExpr, xExpr, yExpr,
		FrameWidth, FrameHeight,
		videoFPS,
	)
}

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpegService(ffmpegPath, ffprobePath string) *FFmpegService {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegService{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Run executes ffmpeg with the given arguments and returns its combined
// output. The full output comes back even on failure so callers can persist
// it untruncated.
func (s *FFmpegService) Run(ctx context.Context, args []string) (string, error) {
	log.Printf("[FFmpeg] running: %s %s", s.ffmpegPath, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), &Error{
			Kind:     ErrCompositor,
			Provider: "ffmpeg",
			Message:  fmt.Sprintf("ffmpeg failed: %v", err),
			Err:      err,
		}
	}

	return string(output), nil
}

// AudioDuration returns the duration of a media file in seconds via ffprobe.
func (s *FFmpegService) AudioDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, s.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, &Error{
			Kind:     ErrCompositor,
			Provider: "ffprobe",
			Message:  fmt.Sprintf("ffprobe failed for %s: %v", path, err),
			Err:      err,
		}
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, &Error{
			Kind:     ErrCompositor,
			Provider: "ffprobe",
			Message:  fmt.Sprintf("failed to parse duration %q: %v", strings.TrimSpace(string(output)), err),
			Err:      err,
		}
	}

	return durationSec, nil
}
