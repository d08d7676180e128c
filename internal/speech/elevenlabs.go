package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"phi.ai/agent-console/internal/config"
)

const (
	defaultElevenLabsURL = "https://api.elevenlabs.io"
	maxAudioBytes        = 16 << 20
)

type ElevenLabsOptions struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	BaseURL    string
	HTTPClient *http.Client
}

// ElevenLabs synthesizes MP3 audio through the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	opts ElevenLabsOptions
}

func NewElevenLabs(opts ElevenLabsOptions) *ElevenLabs {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultElevenLabsURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ElevenLabs{opts: opts}
}

func (e *ElevenLabs) Name() string { return config.SpeechBackendElevenLabs }

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*Clip, error) {
	if e.opts.APIKey == "" {
		return nil, config.MissingCredential("ELEVENLABS_API_KEY")
	}
	if e.opts.VoiceID == "" {
		return nil, config.MissingCredential("ELEVENLABS_VOICE_ID")
	}

	payload, err := json.Marshal(ttsRequest{Text: text, ModelID: e.opts.ModelID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tts request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", e.opts.BaseURL, e.opts.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build tts request: %w", err)
	}
	req.Header.Set("xi-api-key", e.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("ElevenLabs error %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read tts audio: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Clip{ID: ClipID(text), Text: text, Audio: audio, ContentType: contentType}, nil
}
