package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bobarin/shortreel/internal/models"
	"github.com/bobarin/shortreel/internal/services"
	"golang.org/x/sync/errgroup"
)

// SpeechStage turns every scene's narration into an audio file.
type SpeechStage struct {
	tts         services.TTSService
	enc         Encoder
	concurrency int
	callTimeout time.Duration
}

func NewSpeechStage(tts services.TTSService, enc Encoder, concurrency int, callTimeout time.Duration) *SpeechStage {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SpeechStage{tts: tts, enc: enc, concurrency: concurrency, callTimeout: callTimeout}
}

// Synthesize returns one artifact per scene, in scene order, or the first
// error. All scenes are checked for empty narration before any provider call.
func (s *SpeechStage) Synthesize(ctx context.Context, ws *Workspace, scenes []models.Scene, settings models.RenderSettings) ([]AudioArtifact, error) {
	if err := models.ValidateScenes(scenes); err != nil {
		return nil, err
	}
	for i, scene := range scenes {
		if strings.TrimSpace(scene.Text) == "" {
			return nil, fmt.Errorf("%w: scene %d has no text", ErrEmptyNarration, i+1)
		}
	}

	out := make([]AudioArtifact, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, scene := range scenes {
		g.Go(func() error {
			art, err := s.synthesizeScene(gctx, ws, i, scene, settings)
			if err != nil {
				return fmt.Errorf("speech synthesis failed for scene %d: %w", i+1, err)
			}
			out[i] = art
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SpeechStage) synthesizeScene(ctx context.Context, ws *Workspace, i int, scene models.Scene, settings models.RenderSettings) (AudioArtifact, error) {
	text := strings.TrimSpace(scene.Text)

	callCtx, cancel := withTimeout(ctx, s.callTimeout)
	resp, err := s.tts.GenerateSpeech(callCtx, text, settings.Voice)
	cancel()
	if err != nil {
		return AudioArtifact{}, err
	}
	if resp == nil || len(resp.AudioData) == 0 {
		return AudioArtifact{}, fmt.Errorf("provider returned no audio")
	}

	format := resp.Format
	if format == "" {
		format = "mp3"
	}
	path := ws.NewPath("audio", i, "."+format)
	if err := os.WriteFile(path, resp.AudioData, 0o644); err != nil {
		return AudioArtifact{}, fmt.Errorf("failed to write audio: %w", err)
	}

	duration, err := s.enc.ProbeDuration(ctx, path)
	if err != nil {
		return AudioArtifact{}, fmt.Errorf("failed to probe audio: %w", err)
	}

	log.Printf("[Speech] job %s: scene %d ready (%.2fs)", ws.JobID(), i+1, duration)

	return AudioArtifact{
		SceneIndex: i,
		Path:       path,
		Source:     text,
		Duration:   duration,
	}, nil
}

// withTimeout applies d when positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
