package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultChatModel     = "gpt-5-mini" // best reasoning/cost balance for planning
	maxStoryboardScenes  = 10
	transcriptionLang    = "en"
	imageFallbackQuality = openai.CreateImageQualityStandard
)

// OpenAIService covers the OpenAI-backed capabilities: script writing,
// storyboard planning, Whisper transcription, and DALL-E images (used as the
// fallback image provider behind Gemini).
type OpenAIService struct {
	client    *openai.Client
	chatModel string
}

var (
	_ ScriptGenerator     = (*OpenAIService)(nil)
	_ StoryboardGenerator = (*OpenAIService)(nil)
	_ ImageGenerator      = (*OpenAIService)(nil)
	_ Transcriber         = (*OpenAIService)(nil)
)

func NewOpenAIService(apiKey, chatModel string) *OpenAIService {
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	return &OpenAIService{
		client:    openai.NewClient(apiKey),
		chatModel: chatModel,
	}
}

// ---------------------------------------------------------------------------
// Script generation
// ---------------------------------------------------------------------------

type scriptResponse struct {
	Script string `json:"script"`
}

// GenerateScript writes the narration script for a topic. The model answers
// in JSON mode so the script text survives quoting intact.
func (s *OpenAIService) GenerateScript(ctx context.Context, topic string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: scriptSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Write the narration script for a short vertical video about: %q", topic),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})
	if err != nil {
		return "", classifyOpenAIError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: ErrProvider, Provider: "openai", Message: "no response choices for script"}
	}

	rawContent := resp.Choices[0].Message.Content

	var parsed scriptResponse
	if err := json.Unmarshal([]byte(rawContent), &parsed); err != nil {
		log.Printf("[OpenAI script] parse failed: %v", err)
		logRawResponse("OpenAI script", rawContent)
		return "", &Error{Kind: ErrProvider, Provider: "openai", Message: "failed to parse script response", Err: err}
	}

	script := strings.TrimSpace(parsed.Script)
	if script == "" {
		logRawResponse("OpenAI script", rawContent)
		return "", &Error{Kind: ErrProvider, Provider: "openai", Message: "script response was empty"}
	}

	log.Printf("[OpenAI script] script generated (%d chars)", len(script))
	return script, nil
}

// ---------------------------------------------------------------------------
// Storyboard generation
// ---------------------------------------------------------------------------

type storyboardResponse struct {
	Scenes []ScenePlan `json:"scenes"`
}

// GenerateStoryboard breaks a narration script into ordered scenes, each with
// the narration slice it covers and a full image prompt.
func (s *OpenAIService) GenerateStoryboard(ctx context.Context, script string) ([]ScenePlan, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: storyboardSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Break this narration script into scenes:\n\n%s", script),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})
	if err != nil {
		return nil, classifyOpenAIError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: ErrProvider, Provider: "openai", Message: "no response choices for storyboard"}
	}

	rawContent := resp.Choices[0].Message.Content

	var parsed storyboardResponse
	if err := json.Unmarshal([]byte(rawContent), &parsed); err != nil {
		log.Printf("[OpenAI storyboard] parse failed: %v", err)
		logRawResponse("OpenAI storyboard", rawContent)
		return nil, &Error{Kind: ErrProvider, Provider: "openai", Message: "failed to parse storyboard response", Err: err}
	}

	if len(parsed.Scenes) == 0 {
		logRawResponse("OpenAI storyboard", rawContent)
		return nil, &Error{Kind: ErrProvider, Provider: "openai", Message: "storyboard has no scenes"}
	}

	// Validate all required fields on each scene
	for i, scene := range parsed.Scenes {
		var missing []string
		if strings.TrimSpace(scene.Narration) == "" {
			missing = append(missing, "narration")
		}
		if strings.TrimSpace(scene.ImagePrompt) == "" {
			missing = append(missing, "image_prompt")
		}
		if len(missing) > 0 {
			log.Printf("[OpenAI storyboard] scene %d missing required fields: %v", i, missing)
			logRawResponse("OpenAI storyboard", rawContent)
			return nil, &Error{
				Kind:     ErrProvider,
				Provider: "openai",
				Message:  fmt.Sprintf("storyboard scene %d missing required fields: %v", i, missing),
			}
		}
	}

	scenes := parsed.Scenes
	if len(scenes) > maxStoryboardScenes {
		log.Printf("[OpenAI storyboard] clamping %d scenes to %d", len(scenes), maxStoryboardScenes)
		scenes = scenes[:maxStoryboardScenes]
	}

	log.Printf("[OpenAI storyboard] storyboard generated: %d scenes", len(scenes))
	return scenes, nil
}

// ---------------------------------------------------------------------------
// Whisper transcription: segment timestamps for caption generation
// ---------------------------------------------------------------------------

// Transcribe sends narration audio to Whisper and returns timed caption
// segments. The audio bytes are the raw TTS output.
func (s *OpenAIService) Transcribe(ctx context.Context, audio []byte) ([]CaptionSegment, error) {
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audio),
		FilePath: "narration.mp3", // filename hint required by the library
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: transcriptionLang,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, classifyOpenAIError("whisper", err)
	}

	if len(resp.Segments) == 0 {
		return nil, &Error{
			Kind:     ErrProvider,
			Provider: "whisper",
			Message:  fmt.Sprintf("no segments returned (text: %q)", truncateString(resp.Text, 80)),
		}
	}

	segments := make([]CaptionSegment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, CaptionSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}
	if len(segments) == 0 {
		return nil, &Error{Kind: ErrProvider, Provider: "whisper", Message: "all segments were empty"}
	}

	log.Printf("[Whisper] Transcribed %d segments (duration: %.1fs, text: %q)",
		len(segments), resp.Duration, truncateString(resp.Text, 80))

	return segments, nil
}

// ---------------------------------------------------------------------------
// DALL-E image generation: fallback behind the primary Gemini provider
// ---------------------------------------------------------------------------

// GenerateImage renders one portrait image with DALL-E 3 and returns the
// decoded PNG bytes.
func (s *OpenAIService) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1792,
		Quality:        imageFallbackQuality,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classifyOpenAIError("dalle", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, &Error{Kind: ErrProvider, Provider: "dalle", Message: "no image data in response"}
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, &Error{Kind: ErrProvider, Provider: "dalle", Message: "failed to decode image payload", Err: err}
	}

	log.Printf("[DALL-E] image generated (%d bytes)", len(data))
	return data, nil
}

// ---------------------------------------------------------------------------
// Error classification and logging helpers
// ---------------------------------------------------------------------------

// classifyOpenAIError maps a go-openai failure onto an ErrorKind using the
// typed API error where available.
func classifyOpenAIError(provider string, err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := ErrProvider
		code, _ := apiErr.Code.(string)
		lowerMsg := strings.ToLower(apiErr.Message)
		switch {
		case code == "content_policy_violation" || strings.Contains(lowerMsg, "content policy") || strings.Contains(lowerMsg, "safety system"):
			kind = ErrContentPolicy
		case code == "insufficient_quota" || code == "billing_hard_limit_reached" || apiErr.HTTPStatusCode == 429:
			kind = ErrQuotaExceeded
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 || code == "invalid_api_key":
			kind = ErrInvalidCredentials
		}
		return &Error{Kind: kind, Provider: provider, Message: apiErr.Message, Err: err}
	}
	return &Error{Kind: ErrProvider, Provider: provider, Message: err.Error(), Err: err}
}

// logRawResponse logs a model's raw output when parsing or validation failed.
func logRawResponse(tag, raw string) {
	if len(raw) > maxRawLogLen {
		log.Printf("[%s] raw response (truncated): %s...", tag, raw[:maxRawLogLen])
		return
	}
	log.Printf("[%s] raw response: %s", tag, raw)
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

const scriptSystemPrompt = `You are an expert narration writer for short-form vertical videos (TikTok/Reels/Shorts).

Your task is to write the complete voiceover script for a 30-45 second video about the user's topic.

The script is read aloud by text-to-speech and played over a slideshow of generated images. It is NOT text displayed on screen. Write it to be LISTENED to, not read.

Writing rules:
- Open with a hook that makes someone stop scrolling: a surprising fact, a question, or a bold claim. Not a generic intro.
- Tell one cohesive story with a clear arc: hook, build, payoff. When read back it should sound like one person telling one story.
- Use SHORT, punchy sentences. Break long sentences into two or three shorter ones.
- Write conversationally, directly to the listener. Use contractions (don't, isn't, they're).
- Avoid jargon and parenthetical asides that trip up speech synthesis.
- End with a satisfying conclusion that feels earned, not abrupt.
- Target 70-110 words total. That is 30-45 seconds at narration pace.

Respond with JSON: {"script": "<the full narration text>"}`

const storyboardSystemPrompt = `You are a storyboard artist for short-form vertical videos.

You receive a complete narration script. Divide it into 4-8 scenes. Each scene covers a contiguous slice of the narration and gets one still image.

For each scene provide:
- narration: the exact slice of the script this scene covers. The slices in order must reconstruct the full script. Do not rewrite or summarize the narration.
- image_prompt: a complete, self-contained description of the image for this scene. Include the subject and its pose or expression, the setting and environment, the lighting and time of day, and the mood. Compose for a vertical 9:16 portrait frame. Every prompt must stand alone; never reference other scenes or "the previous image".

Scene pacing:
- Aim for one scene per 5-8 seconds of narration.
- The first scene's image must be the strongest visual hook.
- Keep a consistent visual world across prompts (same style, palette, era) by repeating the key style words in every prompt.

Respond with JSON: {"scenes": [{"narration": "...", "image_prompt": "..."}, ...]}`
