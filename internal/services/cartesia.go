package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bobarin/shortreel/internal/models"
)

const (
	CartesiaAPIVersion = "2024-06-10"
	cartesiaModel      = "sonic-multilingual"

	// DefaultCartesiaVoiceID is used when CARTESIA_VOICE_ID is empty.
	DefaultCartesiaVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

type CartesiaService struct {
	apiKey         string
	apiURL         string
	apiVersion     string
	defaultVoiceID string
	client         *http.Client
}

var _ TTSService = (*CartesiaService)(nil)

func NewCartesiaService(apiKey, apiURL, voiceID string) *CartesiaService {
	if voiceID == "" {
		voiceID = DefaultCartesiaVoiceID
	}
	return &CartesiaService{
		apiKey:         apiKey,
		apiURL:         strings.TrimRight(apiURL, "/"),
		apiVersion:     CartesiaAPIVersion,
		defaultVoiceID: voiceID,
		client:         &http.Client{Timeout: 60 * time.Second},
	}
}

// CartesiaRequest matches the /tts/bytes request body.
type CartesiaRequest struct {
	ModelID      string                    `json:"model_id"`
	Transcript   string                    `json:"transcript"`
	Voice        CartesiaVoiceSpecifier    `json:"voice"`
	Language     *string                   `json:"language,omitempty"`
	OutputFormat CartesiaOutputFormat      `json:"output_format"`
	Config       *CartesiaGenerationConfig `json:"generation_config,omitempty"`
}

type CartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type CartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

type CartesiaGenerationConfig struct {
	Volume *float64 `json:"volume,omitempty"` // 0.5 to 2.0
	Speed  *float64 `json:"speed,omitempty"`  // 0.6 to 1.5
}

const (
	cartesiaSpeed  = 0.9
	cartesiaVolume = 1.2
)

// request builds the /tts/bytes body for one scene. The language is taken
// from the scene voice; the speaker is always the configured voice id.
func (s *CartesiaService) request(text, voice string) CartesiaRequest {
	speed, volume := cartesiaSpeed, cartesiaVolume
	reqBody := CartesiaRequest{
		ModelID:    cartesiaModel,
		Transcript: text,
		Voice: CartesiaVoiceSpecifier{
			Mode: "id",
			ID:   s.defaultVoiceID,
		},
		OutputFormat: CartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
		Config: &CartesiaGenerationConfig{Speed: &speed, Volume: &volume},
	}
	if lang := models.LanguageOf(voice); lang != "" {
		reqBody.Language = &lang
	}
	return reqBody
}

func (s *CartesiaService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	reqBody := s.request(text, voice)

	req, err := newJSONRequest(ctx, s.apiURL+"/tts/bytes", reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Cartesia-Version", s.apiVersion)

	audioData, err := fetchAudio(s.client, "cartesia", req)
	if err != nil {
		return nil, err
	}

	return &TTSResponse{
		AudioData:  audioData,
		DurationMs: estimateAudioDuration(text, cartesiaSpeed),
		Format:     "mp3",
	}, nil
}
