package pipeline

import (
	"context"

	"github.com/bobarin/shortreel/internal/models"
)

// AudioArtifact is one scene's narration on disk.
type AudioArtifact struct {
	SceneIndex int
	Path       string
	Source     string  // narration text
	Duration   float64 // seconds, as probed
}

// ImageArtifact is one scene's still image on disk.
type ImageArtifact struct {
	SceneIndex     int
	Path           string
	Source         string // visual prompt
	Method         models.ImageGenerationMethod
	Fallback       bool
	FallbackReason string
}

// ClipArtifact is one encoded scene clip.
type ClipArtifact struct {
	SceneIndex int
	Path       string
	Duration   float64
}

// Encoder is the media toolchain the stages drive.
type Encoder interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	EncodeStill(ctx context.Context, imagePath, audioPath, outputPath string, durationSec float64, width, height, fps int) error
	Concat(ctx context.Context, clipPaths []string, listPath, outputPath string) error
	MixAudio(ctx context.Context, videoPath, musicPath, outputPath string, volume float64) error
}
