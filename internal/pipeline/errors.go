package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyNarration is returned when a scene has no text to speak.
var ErrEmptyNarration = errors.New("empty narration")

// ErrNoProvider marks an image strategy that has no backing service.
var ErrNoProvider = errors.New("no provider configured")

// ImageGenerationError is raised only when the placeholder fallback for a
// scene also failed.
type ImageGenerationError struct {
	SceneIndex int
	Err        error
}

func (e *ImageGenerationError) Error() string {
	return fmt.Sprintf("image generation failed for scene %d: %v", e.SceneIndex+1, e.Err)
}

func (e *ImageGenerationError) Unwrap() error { return e.Err }

// EncodingError wraps an encoder failure while building one scene clip.
type EncodingError struct {
	SceneIndex int
	Err        error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed for scene %d: %v", e.SceneIndex+1, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ConcatenationError wraps a failure joining the scene clips.
type ConcatenationError struct {
	Err error
}

func (e *ConcatenationError) Error() string {
	return fmt.Sprintf("concatenation failed: %v", e.Err)
}

func (e *ConcatenationError) Unwrap() error { return e.Err }
