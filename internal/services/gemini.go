package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiImageModel = "gemini-3-pro-image-preview"

// GeminiService is the primary still-image provider. It asks Gemini's image
// model for one portrait frame per scene via the Gen AI SDK.
type GeminiService struct {
	apiKey string
	model  string
}

var _ ImageGenerator = (*GeminiService)(nil)

// NewGeminiService creates a Gemini image service. An empty model defaults to
// the preview image model.
func NewGeminiService(apiKey, model string) *GeminiService {
	if model == "" {
		model = defaultGeminiImageModel
	}
	return &GeminiService{
		apiKey: apiKey,
		model:  model,
	}
}

// GenerateImage renders a single still for one scene. Each call is
// independent, so retries and fallbacks can re-enter freely.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &Error{Kind: ErrProvider, Provider: "gemini", Message: "failed to create genai client", Err: err}
	}

	promptText := composeImagePrompt(prompt)

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(promptText), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, classifyGeminiError("gemini", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &Error{
			Kind:     ErrContentPolicy,
			Provider: "gemini",
			Message:  fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
		}
	}

	if len(resp.Candidates) == 0 {
		return nil, &Error{Kind: ErrProvider, Provider: "gemini", Message: "no candidates in response"}
	}

	cand := resp.Candidates[0]
	if string(cand.FinishReason) == "SAFETY" {
		return nil, &Error{Kind: ErrContentPolicy, Provider: "gemini", Message: "candidate blocked by safety filters"}
	}
	if cand.Content == nil {
		return nil, &Error{Kind: ErrProvider, Provider: "gemini", Message: "candidate has no content"}
	}

	var textParts []string
	for _, part := range cand.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			log.Printf("[Gemini] image generated (%d bytes, %s)", len(part.InlineData.Data), part.InlineData.MIMEType)
			return part.InlineData.Data, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		return nil, &Error{
			Kind:     ErrProvider,
			Provider: "gemini",
			Message:  fmt.Sprintf("returned text instead of image: %s", truncateString(textParts[0], 200)),
		}
	}
	return nil, &Error{
		Kind:     ErrProvider,
		Provider: "gemini",
		Message:  fmt.Sprintf("no image data in response (%d parts, none inline)", len(cand.Content.Parts)),
	}
}

// classifyGeminiError maps a Gen AI SDK failure onto an ErrorKind using the
// typed API error where available.
func classifyGeminiError(provider string, err error) *Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		kind := ErrProvider
		lowerMsg := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" || strings.Contains(lowerMsg, "quota"):
			kind = ErrQuotaExceeded
		case apiErr.Code == 401 || apiErr.Code == 403 || apiErr.Status == "UNAUTHENTICATED" || apiErr.Status == "PERMISSION_DENIED":
			kind = ErrInvalidCredentials
		case apiErr.Code == 400 && (strings.Contains(lowerMsg, "safety") || strings.Contains(lowerMsg, "blocked")):
			kind = ErrContentPolicy
		}
		return &Error{Kind: kind, Provider: provider, Message: apiErr.Message, Err: err}
	}
	return &Error{Kind: ErrProvider, Provider: provider, Message: err.Error(), Err: err}
}

// composeImagePrompt wraps a scene description with the framing and quality
// directives every scene shares. Safety language is prepended separately by
// the caller, so this stays about composition only.
func composeImagePrompt(scenePrompt string) string {
	var b strings.Builder

	b.WriteString("SCENE TO DEPICT:\n")
	b.WriteString(scenePrompt)
	b.WriteString("\n\nComposition: vertical 9:16 portrait frame, subject centered with headroom, ")
	b.WriteString("cinematic lighting, rich color depth. Output: Portrait 9:16, highest quality.")

	return b.String()
}
