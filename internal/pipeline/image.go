package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bobarin/shortreel/internal/models"
	"github.com/bobarin/shortreel/internal/services"
	"golang.org/x/sync/errgroup"
)

// stockKeywordCount is how many keywords feed a stock photo search.
const stockKeywordCount = 3

// AIImageGenerator renders an image from a text prompt.
type AIImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error)
}

// StockPhotoSearcher finds a photo for a keyword query.
type StockPhotoSearcher interface {
	SearchPhoto(ctx context.Context, query, orientation string) ([]byte, error)
}

// PlaceholderRenderer draws the offline fallback image.
type PlaceholderRenderer interface {
	Render(sceneIndex int, prompt, lang string, width, height int) ([]byte, error)
}

// ImageStage produces one still per scene with the strategy named in the
// settings, falling back to a placeholder per scene.
type ImageStage struct {
	placeholder PlaceholderRenderer
	stock       StockPhotoSearcher
	ai          AIImageGenerator
	concurrency int
	callTimeout time.Duration
}

// NewImageStage wires the strategies. stock and ai may be nil; scenes that
// ask for them then fall back to the placeholder.
func NewImageStage(placeholder PlaceholderRenderer, stock StockPhotoSearcher, ai AIImageGenerator, concurrency int, callTimeout time.Duration) *ImageStage {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ImageStage{
		placeholder: placeholder,
		stock:       stock,
		ai:          ai,
		concurrency: concurrency,
		callTimeout: callTimeout,
	}
}

// Synthesize returns one artifact per scene in scene order. A provider
// failure only degrades the affected scene; ImageGenerationError is returned
// when the placeholder for a scene could not be produced either.
func (s *ImageStage) Synthesize(ctx context.Context, ws *Workspace, scenes []models.Scene, settings models.RenderSettings) ([]ImageArtifact, error) {
	if err := models.ValidateScenes(scenes); err != nil {
		return nil, err
	}

	out := make([]ImageArtifact, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, scene := range scenes {
		g.Go(func() error {
			art, err := s.synthesizeScene(gctx, ws, i, scene, settings)
			if err != nil {
				return err
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

func (s *ImageStage) synthesizeScene(ctx context.Context, ws *Workspace, i int, scene models.Scene, settings models.RenderSettings) (ImageArtifact, error) {
	prompt := scene.VisualPrompt()
	art := ImageArtifact{
		SceneIndex: i,
		Source:     prompt,
		Method:     settings.ImageGenerationMethod,
	}

	var (
		data []byte
		err  error
	)
	switch settings.ImageGenerationMethod {
	case models.ImageMethodStockPhoto:
		data, err = s.fromStock(ctx, prompt, settings)
	case models.ImageMethodAIGenerated:
		data, err = s.fromAI(ctx, prompt, settings)
	default:
		art.Method = models.ImageMethodPlaceholder
	}
	if err == nil && art.Method != models.ImageMethodPlaceholder && len(data) == 0 {
		err = fmt.Errorf("provider returned no image")
	}

	if err == nil && len(data) > 0 {
		var ext string
		ext, err = imageExtension(data)
		if err == nil {
			art.Path, err = writeArtifact(ws, "image", i, ext, data)
			if err != nil {
				return ImageArtifact{}, &ImageGenerationError{SceneIndex: i, Err: err}
			}
			return art, nil
		}
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ImageArtifact{}, ctxErr
		}
		log.Printf("[Image] job %s: scene %d %s failed, using placeholder: %v", ws.JobID(), i+1, settings.ImageGenerationMethod, err)
		art.Fallback = true
		art.FallbackReason = err.Error()
		art.Method = models.ImageMethodPlaceholder
	}

	data, err = s.placeholder.Render(i, prompt, settings.Language(), settings.Width, settings.Height)
	if err != nil {
		return ImageArtifact{}, &ImageGenerationError{SceneIndex: i, Err: err}
	}
	art.Path, err = writeArtifact(ws, "image", i, ".png", data)
	if err != nil {
		return ImageArtifact{}, &ImageGenerationError{SceneIndex: i, Err: err}
	}
	return art, nil
}

func (s *ImageStage) fromStock(ctx context.Context, prompt string, settings models.RenderSettings) ([]byte, error) {
	if s.stock == nil {
		return nil, fmt.Errorf("stock photo: %w", ErrNoProvider)
	}
	keywords := services.ExtractKeywords(prompt, stockKeywordCount)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("stock photo: no keywords in prompt")
	}

	callCtx, cancel := withTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.stock.SearchPhoto(callCtx, strings.Join(keywords, " "), settings.Orientation())
}

func (s *ImageStage) fromAI(ctx context.Context, prompt string, settings models.RenderSettings) ([]byte, error) {
	if s.ai == nil {
		return nil, fmt.Errorf("ai image: %w", ErrNoProvider)
	}

	callCtx, cancel := withTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.ai.GenerateImage(callCtx, EnhancePrompt(prompt, settings), settings.Width, settings.Height)
}

// EnhancePrompt appends the style and orientation hints sent to generative
// providers.
func EnhancePrompt(prompt string, settings models.RenderSettings) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	if style := strings.TrimSpace(settings.ImageStyle); style != "" {
		fmt.Fprintf(&b, ", %s style", style)
	}
	fmt.Fprintf(&b, ", %s orientation", settings.Orientation())
	b.WriteString(", high quality, detailed, no text")
	return b.String()
}

// imageExtension sniffs data and rejects anything that is not an image.
func imageExtension(data []byte) (string, error) {
	switch ct := http.DetectContentType(data); ct {
	case "image/png":
		return ".png", nil
	case "image/jpeg":
		return ".jpg", nil
	case "image/webp":
		return ".webp", nil
	case "image/gif":
		return ".gif", nil
	default:
		return "", fmt.Errorf("provider returned %s, not an image", ct)
	}
}

func writeArtifact(ws *Workspace, kind string, i int, ext string, data []byte) (string, error) {
	path := ws.NewPath(kind, i, ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return path, nil
}
