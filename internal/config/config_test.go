package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PHI_API_URL", "http://backend:8000/")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8000", cfg.PhiAPIURL)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "demoUser", cfg.DefaultUserID)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, SpeechBackendLocal, cfg.SpeechBackend)
	assert.Equal(t, 64, cfg.SpeechClipCache)
}

func TestLoadConfigRejectsUnknownSpeechBackend(t *testing.T) {
	t.Setenv("SPEECH_BACKEND", "carrier-pigeon")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadTimeout(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateServerRequiresJWTSecret(t *testing.T) {
	cfg := &Config{PhiAPIURL: "http://localhost:8000"}
	assert.Error(t, cfg.ValidateServer())

	cfg.JWTSecret = "s3cret"
	assert.NoError(t, cfg.ValidateServer())
}

func TestMissingCredentialWrapsSentinel(t *testing.T) {
	err := MissingCredential("GEMINI_API_KEY")
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
