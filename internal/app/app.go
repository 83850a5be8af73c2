// Package app builds the provider graph from configuration. Both binaries
// share it so the server and the CLI render with identical wiring.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/bobarin/shortreel/internal/config"
	"github.com/bobarin/shortreel/internal/models"
	"github.com/bobarin/shortreel/internal/pipeline"
	"github.com/bobarin/shortreel/internal/services"
	"github.com/bobarin/shortreel/internal/storage"
	"github.com/bobarin/shortreel/internal/store"
	"github.com/bobarin/shortreel/internal/worker"
)

// NewTTS returns the speech provider named by TTS_PROVIDER.
func NewTTS(cfg *config.Config) services.TTSService {
	switch cfg.TTSProvider {
	case config.TTSElevenLabs:
		log.Printf("TTS provider: ElevenLabs (voice: %s)", cfg.ElevenLabsVoiceID)
		return services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
	case config.TTSCartesia:
		log.Printf("TTS provider: Cartesia (voice: %s)", cfg.CartesiaVoiceID)
		return services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaURL, cfg.CartesiaVoiceID)
	case config.TTSOpenAI:
		log.Printf("TTS provider: OpenAI (voice: %s)", cfg.OpenAITTSVoice)
		return services.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAITTSVoice, cfg.OpenAIImageModel)
	default:
		log.Println("TTS provider: Google Translate TTS")
		return services.NewGTTSService()
	}
}

// NewStockSearcher returns nil without a Pexels key; stock scenes then use
// the placeholder.
func NewStockSearcher(cfg *config.Config) pipeline.StockPhotoSearcher {
	if cfg.PexelsKey == "" {
		log.Println("Stock photos disabled (no PEXELS_API_KEY)")
		return nil
	}
	return services.NewPexelsService(cfg.PexelsKey)
}

// NewAIImageGenerator picks Gemini or OpenAI per IMAGE_AI_PROVIDER. In auto
// mode Gemini wins when both keys are present. Returns nil when the chosen
// provider has no key.
func NewAIImageGenerator(cfg *config.Config) pipeline.AIImageGenerator {
	useGemini := cfg.ImageAIProvider == config.ImageAIGemini ||
		(cfg.ImageAIProvider == config.ImageAIAuto && cfg.GeminiKey != "")
	useOpenAI := cfg.ImageAIProvider == config.ImageAIOpenAI ||
		(cfg.ImageAIProvider == config.ImageAIAuto && cfg.GeminiKey == "")

	switch {
	case useGemini && cfg.GeminiKey != "":
		log.Printf("AI images: Gemini")
		return services.NewGeminiService(cfg.GeminiKey, cfg.GeminiImageModel)
	case useOpenAI && cfg.OpenAIKey != "":
		log.Printf("AI images: OpenAI")
		return services.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAITTSVoice, cfg.OpenAIImageModel)
	default:
		log.Println("AI images disabled (no provider key), aiGenerated scenes use the placeholder")
		return nil
	}
}

// NewPublisher returns the publisher for PUBLISH_TARGET. For the local target
// the second value is the same publisher, so callers can serve its directory.
func NewPublisher(ctx context.Context, cfg *config.Config) (storage.Publisher, *storage.LocalPublisher, error) {
	switch cfg.PublishTarget {
	case config.PublishSupabase:
		log.Printf("Publishing to Supabase bucket %s", cfg.SupabaseStorageBucket)
		return storage.NewSupabasePublisher(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket), nil, nil
	case config.PublishMinio:
		pub, err := storage.NewMinioPublisher(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, nil, err
		}
		if err := pub.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		log.Printf("Publishing to MinIO bucket %s at %s", cfg.MinioBucket, cfg.MinioEndpoint)
		return pub, nil, nil
	default:
		pub, err := storage.NewLocalPublisher(cfg.OutputDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Publishing to %s", cfg.OutputDir)
		return pub, pub, nil
	}
}

// NewWorker wires the stages, encoder and providers into a coordinator. The
// caller still has to set a runner.
func NewWorker(cfg *config.Config, st store.Store, pub storage.Publisher) (*worker.Worker, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	ffmpeg := services.NewFFmpegService(cfg.EncodeTimeout)
	n := cfg.SceneConcurrency

	return worker.New(worker.Options{
		Store:         st,
		Speech:        pipeline.NewSpeechStage(NewTTS(cfg), ffmpeg, n, cfg.ExternalCallTimeout),
		Images:        pipeline.NewImageStage(services.NewPlaceholderService(), NewStockSearcher(cfg), NewAIImageGenerator(cfg), n, cfg.ExternalCallTimeout),
		Composer:      pipeline.NewComposer(ffmpeg, n),
		Publisher:     pub,
		TempDir:       cfg.TempDir,
		MusicPath:     cfg.BackgroundMusicPath,
		DefaultVoice:  cfg.DefaultVoice,
		DefaultMethod: models.ImageGenerationMethod(cfg.DefaultImageMethod),
	}), nil
}
