package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ---------------------------------------------------------------------------
// TTSService: common interface for text-to-speech providers
// gTTS, ElevenLabs, Cartesia and OpenAI all implement it so the speech stage
// can use whichever is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData  []byte
	DurationMs int    // provider estimate; the pipeline probes the real value
	Format     string // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	// GenerateSpeech converts text to audio. voice is a BCP-47 tag such as
	// "es-ES"; providers use the language part or the full tag as they need.
	GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error)
}

// estimateAudioDuration estimates duration based on text length and speed.
// Average speaking rate is ~140 words per minute at narration pace.
func estimateAudioDuration(text string, speed float64) int {
	if speed <= 0 {
		speed = 1
	}
	words := len(strings.Fields(text))
	minutes := float64(words) / (140.0 * speed)
	return int(minutes * 60 * 1000)
}

// newJSONRequest builds a POST carrying body as JSON.
func newJSONRequest(ctx context.Context, url string, body interface{}) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// fetchAudio performs req and returns the response body, which must be a
// non-empty audio payload. provider prefixes every error.
func fetchAudio(client *http.Client, provider string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned status %d: %s", provider, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s audio: %w", provider, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s returned empty audio", provider)
	}
	return data, nil
}
