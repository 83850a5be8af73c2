package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"

	"github.com/bobarin/shortreel/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAITTSVoice   = openai.VoiceNova
	defaultOpenAIImageModel = openai.CreateImageModelDallE3
)

// OpenAIService provides speech synthesis and image generation through the
// OpenAI API.
type OpenAIService struct {
	client     *openai.Client
	ttsVoice   openai.SpeechVoice
	imageModel string
}

var _ TTSService = (*OpenAIService)(nil)

func NewOpenAIService(apiKey, ttsVoice, imageModel string) *OpenAIService {
	return NewOpenAIServiceWithConfig(openai.DefaultConfig(apiKey), ttsVoice, imageModel)
}

// NewOpenAIServiceWithConfig allows a custom base URL (used by tests).
func NewOpenAIServiceWithConfig(cfg openai.ClientConfig, ttsVoice, imageModel string) *OpenAIService {
	voice := openai.SpeechVoice(ttsVoice)
	if voice == "" {
		voice = defaultOpenAITTSVoice
	}
	if imageModel == "" {
		imageModel = defaultOpenAIImageModel
	}
	return &OpenAIService{
		client:     openai.NewClientWithConfig(cfg),
		ttsVoice:   voice,
		imageModel: imageModel,
	}
}

// GenerateSpeech synthesizes text with the tts-1 model. OpenAI voices are
// multilingual and infer the language from the text, so voice only shows up
// in logs.
func (s *OpenAIService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	log.Printf("[OpenAI TTS] Generating speech (voice=%s, lang=%s, textLen=%d)", s.ttsVoice, models.LanguageOf(voice), len(text))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          s.ttsVoice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai speech: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}

	return &TTSResponse{
		AudioData:  audio,
		DurationMs: estimateAudioDuration(text, 1.0),
		Format:     "mp3",
	}, nil
}

// GenerateImage renders prompt with the configured image model and returns
// the decoded image bytes.
func (s *OpenAIService) GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	size := openai.CreateImageSize1024x1024
	switch models.OrientationOf(width, height) {
	case "portrait":
		size = openai.CreateImageSize1024x1792
	case "landscape":
		size = openai.CreateImageSize1792x1024
	}

	log.Printf("[OpenAI Image] Generating image (model=%s, size=%s, promptLen=%d)", s.imageModel, size, len(prompt))

	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.imageModel,
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image request failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai returned no image data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode openai image: %w", err)
	}
	return data, nil
}
