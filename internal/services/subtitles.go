package services

import (
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// SRT Caption Generator
//
// Builds SubRip caption files from timed transcription segments. Whisper
// segment timestamps are the normal source; when transcription is not
// available the script text is split into evenly timed chunks instead, so a
// render never has to go out without captions just because transcription
// was down.
// ---------------------------------------------------------------------------

// How many words per caption when slicing a script without timestamps
const wordsPerCaption = 8

// CaptionSegment is one timed caption line. Start and End are seconds from
// the beginning of the narration audio.
type CaptionSegment struct {
	Start float64
	End   float64
	Text  string
}

// BuildSRT renders segments as a SubRip document. Cue numbering is
// one-based and lines are LF-separated.
func BuildSRT(segments []CaptionSegment) string {
	var sb strings.Builder

	cue := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cue++
		sb.WriteString(fmt.Sprintf("%d\n", cue))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTime(seg.Start), formatSRTTime(seg.End)))
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// SplitCaptions produces evenly timed caption segments from raw script text.
// Each caption covers the same share of the total duration. Used as the
// fallback when transcription fails.
func SplitCaptions(script string, totalSeconds float64) []CaptionSegment {
	words := strings.Fields(script)
	if len(words) == 0 {
		return nil
	}
	if totalSeconds <= 0 {
		totalSeconds = estimateSpeechSeconds(script, 1.0)
	}

	var chunks []string
	for start := 0; start < len(words); start += wordsPerCaption {
		end := start + wordsPerCaption
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}

	slice := totalSeconds / float64(len(chunks))
	segments := make([]CaptionSegment, 0, len(chunks))
	for i, chunk := range chunks {
		seg := CaptionSegment{
			Start: float64(i) * slice,
			End:   float64(i+1) * slice,
			Text:  chunk,
		}
		if i == len(chunks)-1 {
			// Pin the last cue to the exact total so float error never
			// leaves a caption hanging past the audio.
			seg.End = totalSeconds
		}
		segments = append(segments, seg)
	}

	return segments
}

// formatSRTTime converts seconds to SRT timestamp format: HH:MM:SS,mmm
func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	totalMillis := int(math.Round(seconds * 1000))
	hours := totalMillis / 3600000
	minutes := (totalMillis % 3600000) / 60000
	secs := (totalMillis % 60000) / 1000
	millis := totalMillis % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
