package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	MaxConcurrentJobs  int
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase
	SupabaseURL         string
	SupabaseServiceKey  string
	SupabaseAudioBucket string

	// OpenAI (manuscript analysis)
	OpenAIKey   string
	OpenAIModel string

	// ElevenLabs (speech synthesis)
	ElevenLabsKey     string
	ElevenLabsModelID string

	// Synthesis pacing and retry policy
	SpeechWordsPerSecond float64 // Assumed speech rate for duration estimates
	InterBlockDelayMs    int     // Pause between block synthesis calls
	SynthMaxAttempts     int     // Total synthesis attempts per block
	SynthInitialDelayMs  int     // First retry delay
	SynthMaxDelayMs      int     // Retry delay cap
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:              getEnv("API_PORT", "8080"),
		WorkerEnabled:        getEnvBool("WORKER_ENABLED", true),
		MaxConcurrentJobs:    getEnvInt("MAX_CONCURRENT_JOBS", 2),
		BackendAPIKey:        getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:          getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:   getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseAudioBucket:  getEnv("SUPABASE_AUDIO_BUCKET", "audio-segments"),
		OpenAIKey:            getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ElevenLabsKey:        getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsModelID:    getEnv("ELEVENLABS_MODEL_ID", "eleven_turbo_v2"),
		SpeechWordsPerSecond: getEnvFloat("SPEECH_WORDS_PER_SECOND", 2.5),
		InterBlockDelayMs:    getEnvInt("INTER_BLOCK_DELAY_MS", 500),
		SynthMaxAttempts:     getEnvInt("SYNTH_MAX_ATTEMPTS", 3),
		SynthInitialDelayMs:  getEnvInt("SYNTH_INITIAL_DELAY_MS", 2000),
		SynthMaxDelayMs:      getEnvInt("SYNTH_MAX_DELAY_MS", 10000),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.ElevenLabsKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	return cfg, nil
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
