package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bobarin/shortreel/internal/models"
	"google.golang.org/genai"
)

const defaultGeminiImageModel = "gemini-2.5-flash-image"

// GeminiService generates still images through the Gemini API.
// The genai client is created lazily on first use and reused.
type GeminiService struct {
	apiKey  string
	model   string
	baseURL string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func NewGeminiService(apiKey, model string) *GeminiService {
	if model == "" {
		model = defaultGeminiImageModel
	}
	return &GeminiService{apiKey: apiKey, model: model}
}

// WithBaseURL overrides the API endpoint (used by tests).
func (s *GeminiService) WithBaseURL(u string) *GeminiService {
	s.baseURL = u
	return s
}

func (s *GeminiService) genaiClient(ctx context.Context) (*genai.Client, error) {
	s.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:  s.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
		if s.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
		}
		s.client, s.clientErr = genai.NewClient(ctx, cfg)
	})
	return s.client, s.clientErr
}

// GenerateImage returns the raw bytes of the first inline image Gemini
// produces for prompt.
func (s *GeminiService) GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	client, err := s.genaiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	text := fmt.Sprintf("%s\n\nOutput: a single %s image, aspect ratio %s.", prompt, models.OrientationOf(width, height), aspectRatio(width, height))

	log.Printf("[Gemini] Generating image (model=%s, promptLen=%d)", s.model, len(text))

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in response")
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		return nil, fmt.Errorf("gemini returned text instead of image: %s", truncate(textParts[0], 200))
	}
	return nil, fmt.Errorf("no image data found in response (got %d parts)", len(resp.Candidates[0].Content.Parts))
}

// aspectRatio reduces width:height to the closest common ratio label.
func aspectRatio(width, height int) string {
	switch models.OrientationOf(width, height) {
	case "portrait":
		return "9:16"
	case "landscape":
		return "16:9"
	default:
		return "1:1"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
