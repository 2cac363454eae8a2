package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	MergePort          string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins
	MaxUploadMB        int    // Main API request body cap
	MaxMergeUploadMB   int    // Merge sidecar request body cap

	// Redis (project + image store)
	RedisURL string

	// File storage
	VideoDir  string // generated videos, {VideoDir}/{projectID}/{uuid}.mp4
	SpeechDir string // narration audio, {SpeechDir}/{projectID}/speech_{unix}.mp3
	UploadDir string // sidecar per-request scratch space
	OutputDir string // sidecar merge outputs

	// LLM (script generation)
	LLMProvider   string
	OpenAIKey     string
	OpenAIBaseURL string // empty = library default; set for OpenAI-compatible endpoints
	OpenAIModel   string

	// TTS
	TTSProvider       string // elevenlabs | openai | cartesia | mock
	UseMockTTS        bool   // forces the mock provider regardless of TTSProvider
	ElevenLabsKey     string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	OpenAITTSVoice    string
	OpenAITTSModel    string
	CartesiaKey       string
	CartesiaURL       string
	CartesiaVoiceID   string
	CartesiaModelID   string

	// Video generation
	VideoProvider   string // kling | veo | mock
	UseMockVideoGen bool   // forces the mock provider regardless of VideoProvider
	KlingAccessKey  string
	KlingSecretKey  string
	KlingEndpoint   string
	KlingModel      string
	KlingMode       string // std | pro
	KlingDuration   string // seconds, sent as a string per the Kling API
	KlingCFGScale   float64
	GeminiKey       string // Veo provider
	VeoModel        string

	// FFmpeg
	FFmpegPath  string
	FFprobePath string

	// Prompt presets
	PromptsFile string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("PORT", "8888"),
		MergePort:          getEnv("MERGE_PORT", "5001"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		MaxUploadMB:        getEnvInt("MAX_UPLOAD_MB", 16),
		MaxMergeUploadMB:   getEnvInt("MERGE_MAX_UPLOAD_MB", 200),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		VideoDir:           getEnv("VIDEO_FOLDER", "videos"),
		SpeechDir:          getEnv("SPEECH_FOLDER", "speeches"),
		UploadDir:          getEnv("UPLOAD_FOLDER", "uploads"),
		OutputDir:          getEnv("OUTPUT_FOLDER", "outputs"),
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIKey:          getEnv("OPENAI_API_KEY", getEnv("LLM_API_KEY", "")),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o"),
		TTSProvider:        strings.ToLower(getEnv("TTS_PROVIDER", "elevenlabs")),
		UseMockTTS:         getEnvBool("USE_MOCK_TTS", false),
		ElevenLabsKey:      getEnv("ELEVEN_LABS_API_KEY", getEnv("TTS_API_KEY", "")),
		ElevenLabsBaseURL:  getEnv("ELEVEN_LABS_API_ENDPOINT", "https://api.elevenlabs.io/v1/text-to-speech"),
		ElevenLabsVoiceID:  getEnv("ELEVEN_LABS_DEFAULT_VOICE_ID", "XB0fDUnXU5powFXDhCwa"),
		ElevenLabsModelID:  getEnv("ELEVEN_LABS_DEFAULT_MODEL_ID", "eleven_multilingual_v2"),
		OpenAITTSVoice:     getEnv("OPENAI_TTS_VOICE", "alloy"),
		OpenAITTSModel:     getEnv("OPENAI_TTS_MODEL", "tts-1"),
		CartesiaKey:        getEnv("CARTESIA_API_KEY", ""),
		CartesiaURL:        getEnv("CARTESIA_API_URL", "https://api.cartesia.ai"),
		CartesiaVoiceID:    getEnv("CARTESIA_VOICE_ID", ""),
		CartesiaModelID:    getEnv("CARTESIA_MODEL_ID", "sonic-2"),
		VideoProvider:      strings.ToLower(getEnv("VIDEO_PROVIDER", "kling")),
		UseMockVideoGen:    getEnvBool("USE_MOCK_VIDEO_GEN", false),
		KlingAccessKey:     getEnv("KLING_ACCESS_KEY", ""),
		KlingSecretKey:     getEnv("KLING_SECRET_KEY", ""),
		KlingEndpoint:      getEnv("KLING_API_ENDPOINT", "https://api.klingai.com"),
		KlingModel:         getEnv("KLING_MODEL", "kling-v1"),
		KlingMode:          getEnv("KLING_MODE", "std"),
		KlingDuration:      getEnv("KLING_MAX_DURATION", "10"),
		KlingCFGScale:      getEnvFloat("KLING_CFG_SCALE", 0.5),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		VeoModel:           getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:        getEnv("FFPROBE_PATH", "ffprobe"),
		PromptsFile:        getEnv("PROMPTS_FILE", "prompts.yaml"),
	}

	// Validate required fields. Provider API keys are deliberately not
	// required here: the mock providers run keyless, and real providers
	// report missing credentials when they are constructed.
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}

	if cfg.MaxMergeUploadMB <= 0 {
		return nil, fmt.Errorf("MERGE_MAX_UPLOAD_MB must be positive, got %d", cfg.MaxMergeUploadMB)
	}

	if cfg.KlingCFGScale < 0 || cfg.KlingCFGScale > 1 {
		return nil, fmt.Errorf("KLING_CFG_SCALE must be within [0,1], got %v", cfg.KlingCFGScale)
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
