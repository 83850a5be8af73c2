package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/bobarin/shortreel/internal/models"
	"golang.org/x/sync/errgroup"
)

// Composer turns image/audio pairs into clips and joins them.
type Composer struct {
	enc         Encoder
	concurrency int
}

func NewComposer(enc Encoder, concurrency int) *Composer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Composer{enc: enc, concurrency: concurrency}
}

// ComposeSceneClip holds image for the length of audio.
func (c *Composer) ComposeSceneClip(ctx context.Context, ws *Workspace, image ImageArtifact, audio AudioArtifact, settings models.RenderSettings) (ClipArtifact, error) {
	if image.SceneIndex != audio.SceneIndex {
		return ClipArtifact{}, &EncodingError{
			SceneIndex: audio.SceneIndex,
			Err:        fmt.Errorf("image belongs to scene %d", image.SceneIndex+1),
		}
	}

	out := ws.NewPath("clip", audio.SceneIndex, ".mp4")
	err := c.enc.EncodeStill(ctx, image.Path, audio.Path, out, audio.Duration, settings.Width, settings.Height, settings.FPS)
	if err != nil {
		return ClipArtifact{}, &EncodingError{SceneIndex: audio.SceneIndex, Err: err}
	}

	return ClipArtifact{SceneIndex: audio.SceneIndex, Path: out, Duration: audio.Duration}, nil
}

// ComposeAll encodes every scene clip. images and audio must be index-aligned.
func (c *Composer) ComposeAll(ctx context.Context, ws *Workspace, images []ImageArtifact, audio []AudioArtifact, settings models.RenderSettings) ([]ClipArtifact, error) {
	if len(images) != len(audio) {
		return nil, fmt.Errorf("artifact count mismatch: %d images, %d audio", len(images), len(audio))
	}

	clips := make([]ClipArtifact, len(audio))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range audio {
		g.Go(func() error {
			clip, err := c.ComposeSceneClip(gctx, ws, images[i], audio[i], settings)
			if err != nil {
				return err
			}
			clips[i] = clip
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// Concatenate joins clips in order into the job's final video file.
func (c *Composer) Concatenate(ctx context.Context, ws *Workspace, clips []ClipArtifact) (string, error) {
	if len(clips) == 0 {
		return "", &ConcatenationError{Err: fmt.Errorf("no clips")}
	}

	paths := make([]string, len(clips))
	for i, clip := range clips {
		paths[i] = clip.Path
	}

	output := ws.OutputPath()
	list := ws.NewPath("concat", -1, ".txt")
	if err := c.enc.Concat(ctx, paths, list, output); err != nil {
		return "", &ConcatenationError{Err: err}
	}

	log.Printf("[Composer] job %s: concatenated %d clips", ws.JobID(), len(clips))
	return output, nil
}

// MixBackgroundAudio mixes music under video in place. On error video is
// left untouched.
func (c *Composer) MixBackgroundAudio(ctx context.Context, ws *Workspace, video, music string, volume float64) error {
	mixed := ws.NewPath("mixed", -1, ".mp4")
	if err := c.enc.MixAudio(ctx, video, music, mixed, volume); err != nil {
		return err
	}
	if err := os.Rename(mixed, video); err != nil {
		return fmt.Errorf("failed to replace video with mix: %w", err)
	}
	return nil
}
