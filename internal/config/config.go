package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobarin/shortreel/internal/models"
	"github.com/joho/godotenv"
)

// Publish targets.
const (
	PublishLocal    = "local"
	PublishSupabase = "supabase"
	PublishMinio    = "minio"
)

// TTS providers.
const (
	TTSGoogle     = "gtts"
	TTSElevenLabs = "elevenlabs"
	TTSCartesia   = "cartesia"
	TTSOpenAI     = "openai"
)

// AI image providers. ImageAIAuto prefers Gemini and falls back to OpenAI.
const (
	ImageAIAuto   = "auto"
	ImageAIGemini = "gemini"
	ImageAIOpenAI = "openai"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Job store (empty = in-memory)
	DatabaseURL string

	// Queue (empty or unreachable = in-process runner)
	RedisURL string

	// Filesystem
	TempDir       string
	OutputDir     string
	PublicBaseURL string

	// Publication
	PublishTarget string

	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Speech
	TTSProvider string

	ElevenLabsKey     string
	ElevenLabsVoiceID string

	CartesiaKey     string
	CartesiaURL     string
	CartesiaVoiceID string

	// OpenAI (speech and images)
	OpenAIKey        string
	OpenAITTSVoice   string
	OpenAIImageModel string

	// Images
	ImageAIProvider  string
	GeminiKey        string
	GeminiImageModel string
	PexelsKey        string

	// Render defaults
	DefaultVoice        string
	DefaultImageMethod  string
	BackgroundMusicPath string // Track mixed in when a job asks for music

	// Worker
	MaxConcurrentJobs   int
	SceneConcurrency    int
	ExternalCallTimeout time.Duration
	EncodeTimeout       time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		TempDir:               getEnv("TEMP_DIR", "/tmp/shortreel"),
		OutputDir:             getEnv("OUTPUT_DIR", "./output"),
		PublicBaseURL:         getEnv("PUBLIC_BASE_URL", ""),
		PublishTarget:         strings.ToLower(getEnv("PUBLISH_TARGET", PublishLocal)),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "shortreel-videos"),
		MinioEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:           getEnv("MINIO_BUCKET", "shortreel"),
		MinioUseSSL:           getEnvBool("MINIO_USE_SSL", false),
		TTSProvider:           strings.ToLower(getEnv("TTS_PROVIDER", TTSGoogle)),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		CartesiaKey:           getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:           getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:       getEnv("CARTESIA_VOICE_ID", ""),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAITTSVoice:        getEnv("OPENAI_TTS_VOICE", ""),
		OpenAIImageModel:      getEnv("OPENAI_IMAGE_MODEL", ""),
		ImageAIProvider:       strings.ToLower(getEnv("IMAGE_AI_PROVIDER", ImageAIAuto)),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel:      getEnv("GEMINI_IMAGE_MODEL", ""),
		PexelsKey:             getEnv("PEXELS_API_KEY", ""),
		DefaultVoice:          getEnv("DEFAULT_VOICE", "es-ES"),
		DefaultImageMethod:    getEnv("DEFAULT_IMAGE_METHOD", "placeholder"),
		BackgroundMusicPath:   getEnv("BACKGROUND_MUSIC_PATH", "assets/music/music.mp3"),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 5),
		SceneConcurrency:      getEnvInt("SCENE_CONCURRENCY", 3),
		ExternalCallTimeout:   getEnvDuration("EXTERNAL_CALL_TIMEOUT", 90*time.Second),
		EncodeTimeout:         getEnvDuration("ENCODE_TIMEOUT", 5*time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate only demands keys for the providers that were actually selected.
// Everything else degrades: no Pexels key means stock scenes use the
// placeholder, no AI image key means AI scenes do.
func (c *Config) validate() error {
	switch c.PublishTarget {
	case PublishLocal:
	case PublishSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when PUBLISH_TARGET=supabase")
		}
	case PublishMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when PUBLISH_TARGET=minio")
		}
	default:
		return fmt.Errorf("unknown PUBLISH_TARGET %q (want local, supabase or minio)", c.PublishTarget)
	}

	switch c.TTSProvider {
	case TTSGoogle:
	case TTSElevenLabs:
		if c.ElevenLabsKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
		}
	case TTSCartesia:
		if c.CartesiaKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required when TTS_PROVIDER=cartesia")
		}
	case TTSOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when TTS_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	switch c.ImageAIProvider {
	case ImageAIAuto, ImageAIGemini, ImageAIOpenAI:
	default:
		return fmt.Errorf("unknown IMAGE_AI_PROVIDER %q (want gemini, openai or auto)", c.ImageAIProvider)
	}

	if !models.ImageGenerationMethod(c.DefaultImageMethod).Valid() {
		return fmt.Errorf("unknown DEFAULT_IMAGE_METHOD %q", c.DefaultImageMethod)
	}

	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}
	if c.SceneConcurrency < 1 {
		return fmt.Errorf("SCENE_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
