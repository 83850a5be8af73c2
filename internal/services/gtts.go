package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bobarin/shortreel/internal/models"
)

// ---------------------------------------------------------------------------
// Google Translate TTS
// Keyless endpoint used by gTTS. Requests are limited to ~200 characters, so
// longer narration is split on word boundaries and the MP3 parts are joined.
// ---------------------------------------------------------------------------

const (
	gttsBaseURL      = "https://translate.google.com"
	gttsMaxChunkRune = 200
	gttsUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

type GTTSService struct {
	baseURL string
	client  *http.Client
}

var _ TTSService = (*GTTSService)(nil)

func NewGTTSService() *GTTSService {
	return &GTTSService{
		baseURL: gttsBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the service at another host (used by tests).
func (s *GTTSService) WithBaseURL(u string) *GTTSService {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

func (s *GTTSService) GenerateSpeech(ctx context.Context, text, voice string) (*TTSResponse, error) {
	lang := models.LanguageOf(voice)
	if lang == "" {
		lang = "es"
	}

	chunks := splitTTSText(text, gttsMaxChunkRune)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("gtts: nothing to synthesize")
	}

	log.Printf("[gTTS] Generating speech (lang=%s, textLen=%d, chunks=%d)", lang, len(text), len(chunks))

	var audio []byte
	for i, chunk := range chunks {
		part, err := s.fetchChunk(ctx, chunk, lang, i, len(chunks))
		if err != nil {
			return nil, err
		}
		audio = append(audio, part...)
	}

	return &TTSResponse{
		AudioData:  audio,
		DurationMs: estimateAudioDuration(text, 1.0),
		Format:     "mp3",
	}, nil
}

func (s *GTTSService) fetchChunk(ctx context.Context, chunk, lang string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", chunk)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gtts request: %w", err)
	}
	req.Header.Set("User-Agent", gttsUserAgent)

	data, err := fetchAudio(s.client, "gtts", req)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", idx+1, err)
	}
	return data, nil
}

// splitTTSText breaks text into chunks of at most max runes, preferring
// sentence and word boundaries. A single word longer than max is hard split.
func splitTTSText(text string, max int) []string {
	words := strings.Fields(text)
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, w := range words {
		for utf8.RuneCountInString(w) > max {
			flush()
			r := []rune(w)
			chunks = append(chunks, string(r[:max]))
			w = string(r[max:])
		}

		wl := utf8.RuneCountInString(w)
		if curLen > 0 && curLen+1+wl > max {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(w)
		curLen += wl

		if strings.ContainsAny(w[len(w)-1:], ".!?;") && curLen > max/2 {
			flush()
		}
	}
	flush()
	return chunks
}
