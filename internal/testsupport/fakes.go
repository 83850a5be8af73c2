// Package testsupport holds deterministic stand-ins for the speech, image and
// media providers so pipeline tests run without network or ffmpeg.
package testsupport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bobarin/shortreel/internal/services"
)

// PNGMagic makes fake image payloads sniff as image/png.
var PNGMagic = []byte("\x89PNG\r\n\x1a\n")

// Placeholder is what Encoder records for a genuine PNG image.
const Placeholder = "<placeholder>"

// AudioSeconds is the fake narration length: half a second per word plus a
// quarter second of padding.
func AudioSeconds(text string) float64 {
	return 0.5*float64(len(strings.Fields(text))) + 0.25
}

// TTS returns "audio:<text>" for every request.
type TTS struct {
	mu     sync.Mutex
	Calls  []string
	FailOn string        // fail when the text contains this
	Delay  time.Duration // per call
}

var _ services.TTSService = (*TTS)(nil)

func (f *TTS) GenerateSpeech(ctx context.Context, text, voice string) (*services.TTSResponse, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, text)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	if f.FailOn != "" && strings.Contains(text, f.FailOn) {
		return nil, fmt.Errorf("tts unavailable")
	}
	return &services.TTSResponse{AudioData: []byte("audio:" + text), Format: "mp3"}, nil
}

// CallCount is safe to use while a job is running.
func (f *TTS) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Images serves both the AI and the stock strategy. Payloads are PNGMagic
// followed by the prompt or query.
type Images struct {
	mu      sync.Mutex
	Prompts []string
	Err     error  // fail every call
	FailOn  string // fail calls whose prompt contains this
}

func (f *Images) GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	return f.serve(prompt)
}

func (f *Images) SearchPhoto(ctx context.Context, query, orientation string) ([]byte, error) {
	return f.serve(query)
}

func (f *Images) serve(prompt string) ([]byte, error) {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if f.FailOn != "" && strings.Contains(prompt, f.FailOn) {
		return nil, errors.New("provider unreachable")
	}
	return append(append([]byte{}, PNGMagic...), prompt...), nil
}

// Encoder simulates ffmpeg. A clip file holds one line
// "<seconds>|<audio payload>|<image payload>"; a concatenated file holds one
// such line per clip, so probing it yields the summed duration.
type Encoder struct {
	mu          sync.Mutex
	Encoded     []string // clip output paths, in call order
	FailScene   int      // 1-based scene number whose encode fails; 0 = never
	FailConcat  bool
	FailMix     bool
	MixCalls    int
	ConcatLists []string
	OnMix       func() // called at the start of MixAudio
}

func (e *Encoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if strings.HasSuffix(path, ".mp4") {
		return SumClipSeconds(data)
	}
	text := strings.TrimPrefix(string(data), "audio:")
	return AudioSeconds(text), nil
}

func (e *Encoder) EncodeStill(ctx context.Context, imagePath, audioPath, outputPath string, durationSec float64, width, height, fps int) error {
	if e.FailScene > 0 && strings.Contains(filepath.Base(outputPath), fmt.Sprintf("_%03d_", e.FailScene-1)) {
		return errors.New("encoder crashed")
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return err
	}
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}
	img = bytes.TrimPrefix(img, PNGMagic)
	if bytes.HasPrefix(img, []byte("\x00\x00\x00\rIHDR")) {
		// a real PNG, i.e. the placeholder renderer
		img = []byte(Placeholder)
	}

	line := fmt.Sprintf("%.3f|%s|%s\n", durationSec, audio, img)
	if err := os.WriteFile(outputPath, []byte(line), 0o644); err != nil {
		return err
	}

	e.mu.Lock()
	e.Encoded = append(e.Encoded, outputPath)
	e.mu.Unlock()
	return nil
}

func (e *Encoder) Concat(ctx context.Context, clipPaths []string, listPath, outputPath string) error {
	e.mu.Lock()
	e.ConcatLists = append(e.ConcatLists, listPath)
	e.mu.Unlock()

	if e.FailConcat {
		return errors.New("concat demuxer error")
	}
	var out bytes.Buffer
	for _, p := range clipPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out.Write(data)
	}
	if err := os.WriteFile(listPath, []byte(strings.Join(clipPaths, "\n")), 0o644); err != nil {
		return err
	}
	return os.WriteFile(outputPath, out.Bytes(), 0o644)
}

func (e *Encoder) MixAudio(ctx context.Context, videoPath, musicPath, outputPath string, volume float64) error {
	e.mu.Lock()
	e.MixCalls++
	onMix := e.OnMix
	e.mu.Unlock()

	if onMix != nil {
		onMix()
	}

	if e.FailMix {
		return errors.New("amix failed")
	}
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// SumClipSeconds adds the leading durations of a fake video file.
func SumClipSeconds(data []byte) (float64, error) {
	var total float64
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		head, _, _ := strings.Cut(sc.Text(), "|")
		if head == "" {
			continue
		}
		v, err := strconv.ParseFloat(head, 64)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, sc.Err()
}

// ClipLines returns the per-clip lines of a fake video file.
func ClipLines(data []byte) []string {
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}
