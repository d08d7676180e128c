package speech

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"phi.ai/agent-console/internal/config"
	"phi.ai/agent-console/internal/metrics"
)

// FromConfig builds the adapter selected by SPEECH_BACKEND together with the
// clip store remote audio is published to.
func FromConfig(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Adapter, *ClipStore, error) {
	clips, err := NewClipStore(cfg.SpeechClipCache)
	if err != nil {
		return nil, nil, err
	}

	var synth Synthesizer
	switch cfg.SpeechBackend {
	case config.SpeechBackendElevenLabs:
		synth = NewElevenLabs(ElevenLabsOptions{
			APIKey:     cfg.ElevenLabsAPIKey,
			VoiceID:    cfg.ElevenLabsVoiceID,
			ModelID:    cfg.ElevenLabsModelID,
			BaseURL:    cfg.ElevenLabsBaseURL,
			HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		})
	case config.SpeechBackendLocal:
		synth = NewLocal(cfg.LocalTTSCommand)
	case config.SpeechBackendNone:
	default:
		return nil, nil, fmt.Errorf("unknown speech backend %q", cfg.SpeechBackend)
	}
	return NewAdapter(synth, clips, logger, m), clips, nil
}
