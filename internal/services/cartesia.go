package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Cartesia Text-to-Speech Service
// Legacy provider, kept for deployments that still carry Cartesia keys.
// ElevenLabs is preferred when both are configured.
// ---------------------------------------------------------------------------

const (
	cartesiaBaseURL      = "https://api.cartesia.ai"
	cartesiaAPIVersion   = "2024-06-10"
	cartesiaDefaultVoice = "a0e99841-438c-4a64-b679-ae501e7d6091"
	cartesiaSpeed        = 0.85
)

type CartesiaService struct {
	apiKey     string
	apiVersion string
	voiceID    string
	client     *http.Client
}

// Ensure CartesiaService implements TTSService at compile time.
var _ TTSService = (*CartesiaService)(nil)

// NewCartesiaService creates a Cartesia TTS service. An empty voiceID selects
// the default narration voice.
func NewCartesiaService(apiKey, voiceID string) *CartesiaService {
	if voiceID == "" {
		voiceID = cartesiaDefaultVoice
	}
	return &CartesiaService{
		apiKey:     apiKey,
		apiVersion: cartesiaAPIVersion,
		voiceID:    voiceID,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type cartesiaRequest struct {
	ModelID      string                  `json:"model_id"`
	Transcript   string                  `json:"transcript"`
	Voice        cartesiaVoiceSpecifier  `json:"voice"`
	Language     *string                 `json:"language,omitempty"`
	OutputFormat cartesiaOutputFormat    `json:"output_format"`
	Config       *cartesiaGenerationConf `json:"generation_config,omitempty"`
}

type cartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

type cartesiaGenerationConf struct {
	Speed *float64 `json:"speed,omitempty"` // 0.6 to 1.5
}

// GenerateSpeech generates narration audio using the Cartesia bytes endpoint.
func (s *CartesiaService) GenerateSpeech(ctx context.Context, text string) (*TTSResponse, error) {
	language := "en"
	speed := cartesiaSpeed
	reqBody := cartesiaRequest{
		ModelID:    "sonic-english",
		Transcript: text,
		Voice: cartesiaVoiceSpecifier{
			Mode: "id",
			ID:   s.voiceID,
		},
		Language: &language,
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
		Config: &cartesiaGenerationConf{Speed: &speed},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Cartesia request: %w", err)
	}

	url := fmt.Sprintf("%s/tts/bytes", cartesiaBaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create Cartesia request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cartesia-Version", s.apiVersion)

	log.Printf("[Cartesia] Generating speech (voiceID=%s, textLen=%d)", s.voiceID, len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrProvider, Provider: "cartesia", Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPStatus("cartesia", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrProvider, Provider: "cartesia", Message: "failed to read audio response", Err: err}
	}
	if len(audioData) == 0 {
		return nil, &Error{Kind: ErrProvider, Provider: "cartesia", Message: "empty audio response"}
	}

	seconds := estimateSpeechSeconds(text, speed)

	log.Printf("[Cartesia] Speech generated (%d bytes, estimated %.1fs)", len(audioData), seconds)

	return &TTSResponse{
		AudioData:       audioData,
		DurationSeconds: seconds,
		Format:          "mp3",
	}, nil
}
