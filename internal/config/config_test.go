package config

import (
	"strings"
	"testing"
	"time"
)

// isolate hides a developer .env and any provider settings in the
// environment; empty values count as unset.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"API_PORT", "DATABASE_URL", "REDIS_URL", "PUBLISH_TARGET", "TTS_PROVIDER",
		"IMAGE_AI_PROVIDER", "DEFAULT_VOICE", "DEFAULT_IMAGE_METHOD", "MAX_CONCURRENT_JOBS",
		"SCENE_CONCURRENCY", "EXTERNAL_CALL_TIMEOUT", "ENCODE_TIMEOUT", "MINIO_USE_SSL",
		"SUPABASE_URL", "SUPABASE_SERVICE_KEY", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY",
		"MINIO_SECRET_KEY", "ELEVENLABS_API_KEY", "CARTESIA_API_KEY", "OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIPort != "8080" || cfg.PublishTarget != PublishLocal || cfg.TTSProvider != TTSGoogle {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.DefaultVoice != "es-ES" || cfg.DefaultImageMethod != "placeholder" {
		t.Errorf("unexpected render defaults: %q %q", cfg.DefaultVoice, cfg.DefaultImageMethod)
	}
	if cfg.ExternalCallTimeout != 90*time.Second || cfg.EncodeTimeout != 5*time.Minute {
		t.Errorf("unexpected timeouts: %v %v", cfg.ExternalCallTimeout, cfg.EncodeTimeout)
	}
	if cfg.RedisURL != "" || cfg.DatabaseURL != "" {
		t.Error("queue and database must be opt-in")
	}
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TTS_PROVIDER", "ElevenLabs")
	t.Setenv("ELEVENLABS_API_KEY", "xi-key")
	t.Setenv("SCENE_CONCURRENCY", "6")
	t.Setenv("ENCODE_TIMEOUT", "90s")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MAX_CONCURRENT_JOBS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TTSProvider != TTSElevenLabs || cfg.SceneConcurrency != 6 || cfg.EncodeTimeout != 90*time.Second || !cfg.MinioUseSSL {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxConcurrentJobs != 5 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.MaxConcurrentJobs)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"supabase without keys", map[string]string{"PUBLISH_TARGET": "supabase"}, "SUPABASE_URL"},
		{"minio without keys", map[string]string{"PUBLISH_TARGET": "minio"}, "MINIO_ENDPOINT"},
		{"unknown target", map[string]string{"PUBLISH_TARGET": "ftp"}, "PUBLISH_TARGET"},
		{"cartesia without key", map[string]string{"TTS_PROVIDER": "cartesia"}, "CARTESIA_API_KEY"},
		{"openai tts without key", map[string]string{"TTS_PROVIDER": "openai"}, "OPENAI_API_KEY"},
		{"unknown tts", map[string]string{"TTS_PROVIDER": "espeak"}, "TTS_PROVIDER"},
		{"unknown image provider", map[string]string{"IMAGE_AI_PROVIDER": "dalle"}, "IMAGE_AI_PROVIDER"},
		{"unknown method", map[string]string{"DEFAULT_IMAGE_METHOD": "video"}, "DEFAULT_IMAGE_METHOD"},
		{"zero scene concurrency", map[string]string{"SCENE_CONCURRENCY": "0"}, "SCENE_CONCURRENCY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
