package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingCredential is returned at call time when a third-party service
// is used without its credential configured. It is never retried.
var ErrMissingCredential = errors.New("missing credential")

// MissingCredential reports which setting was absent.
func MissingCredential(key string) error {
	return fmt.Errorf("%w: %s is not set", ErrMissingCredential, key)
}

const (
	SpeechBackendNone       = "none"
	SpeechBackendLocal      = "local"
	SpeechBackendElevenLabs = "elevenlabs"
)

type Config struct {
	PhiAPIURL     string
	HTTPPort      string
	LogLevel      string
	DatabaseURL   string
	JWTSecret     string
	DefaultUserID string
	HTTPTimeout   time.Duration

	GeminiAPIKey string
	GeminiModel  string

	SpeechBackend     string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	ElevenLabsBaseURL string
	LocalTTSCommand   string
	SpeechClipCache   int

	NeoRPCURL    string
	ContractHash string
}

var defaults = map[string]any{
	"PHI_API_URL":         "http://localhost:8000",
	"HTTP_PORT":           "8080",
	"LOG_LEVEL":           "INFO",
	"DATABASE_URL":        "file:phi_sessions?mode=memory&cache=shared",
	"JWT_SECRET":          "",
	"DEFAULT_USER_ID":     "demoUser",
	"HTTP_TIMEOUT":        "30s",
	"GEMINI_API_KEY":      "",
	"GEMINI_MODEL":        "gemini-1.5-flash-latest",
	"SPEECH_BACKEND":      SpeechBackendLocal,
	"ELEVENLABS_API_KEY":  "",
	"ELEVENLABS_VOICE_ID": "21m00Tcm4TlvDq8ikWAM",
	"ELEVENLABS_MODEL_ID": "eleven_flash_v2",
	"ELEVENLABS_BASE_URL": "https://api.elevenlabs.io",
	"LOCAL_TTS_COMMAND":   "espeak-ng",
	"SPEECH_CLIP_CACHE":   64,
	"NEO_RPC_URL":         "https://testnet1.neo.coz.io",
	"PHI_CONTRACT_HASH":   "0xbf543d7e8371e06756a67b149004738420d1bd2b",
}

// LoadConfig reads .env (if present), an optional config file named by
// PHI_CONFIG and the process environment, in increasing priority.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := v.GetString("PHI_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	timeout, err := time.ParseDuration(v.GetString("HTTP_TIMEOUT"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT %q", v.GetString("HTTP_TIMEOUT"))
	}

	cfg := &Config{
		PhiAPIURL:     strings.TrimRight(v.GetString("PHI_API_URL"), "/"),
		HTTPPort:      v.GetString("HTTP_PORT"),
		LogLevel:      strings.ToUpper(v.GetString("LOG_LEVEL")),
		DatabaseURL:   v.GetString("DATABASE_URL"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		DefaultUserID: v.GetString("DEFAULT_USER_ID"),
		HTTPTimeout:   timeout,

		GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
		GeminiModel:  v.GetString("GEMINI_MODEL"),

		SpeechBackend:     strings.ToLower(v.GetString("SPEECH_BACKEND")),
		ElevenLabsAPIKey:  v.GetString("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: v.GetString("ELEVENLABS_VOICE_ID"),
		ElevenLabsModelID: v.GetString("ELEVENLABS_MODEL_ID"),
		ElevenLabsBaseURL: strings.TrimRight(v.GetString("ELEVENLABS_BASE_URL"), "/"),
		LocalTTSCommand:   v.GetString("LOCAL_TTS_COMMAND"),
		SpeechClipCache:   v.GetInt("SPEECH_CLIP_CACHE"),

		NeoRPCURL:    v.GetString("NEO_RPC_URL"),
		ContractHash: v.GetString("PHI_CONTRACT_HASH"),
	}

	switch cfg.SpeechBackend {
	case SpeechBackendNone, SpeechBackendLocal, SpeechBackendElevenLabs:
	default:
		return nil, fmt.Errorf("unknown SPEECH_BACKEND %q", cfg.SpeechBackend)
	}
	if cfg.SpeechClipCache <= 0 {
		cfg.SpeechClipCache = 64
	}
	return cfg, nil
}

// ValidateServer checks the settings the HTTP server cannot start without.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.PhiAPIURL == "" {
		return errors.New("PHI_API_URL environment variable is required")
	}
	return nil
}
