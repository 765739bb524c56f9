package services

import (
	"context"
	"strings"
)

// ---------------------------------------------------------------------------
// TTSService is the common interface for text-to-speech providers.
// Both ElevenLabs and Cartesia implement this interface so the worker
// can use whichever is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider.
// DurationSeconds is the provider's estimate; the pipeline measures the real
// length from the encoded audio before trusting it.
type TTSResponse struct {
	AudioData       []byte
	DurationSeconds float64
	Format          string // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	GenerateSpeech(ctx context.Context, text string) (*TTSResponse, error)
}

// estimateSpeechSeconds estimates narration length from word count.
// Average narration pace is ~140 words per minute at normal speed.
func estimateSpeechSeconds(text string, speed float64) float64 {
	words := len(strings.Fields(text))
	baseWPM := 140.0
	if speed <= 0 {
		speed = 1.0
	}
	actualWPM := baseWPM * speed
	return float64(words) / actualWPM * 60.0
}
