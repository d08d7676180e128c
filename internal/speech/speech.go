// Package speech turns assistant replies into audio. Playback is
// fire-and-forget: callers never observe completion or failure.
package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phi.ai/agent-console/internal/logging"
	"phi.ai/agent-console/internal/metrics"
)

const defaultPlaybackTimeout = 60 * time.Second

var clipNamespace = uuid.MustParse("6f1c8a1e-5b0e-4c59-9d3e-2a7f0b1d4e21")

// ClipID is the stable identifier of the clip synthesized for text.
// Equal sanitized text yields the same id.
func ClipID(text string) string {
	return uuid.NewSHA1(clipNamespace, []byte(Sanitize(text))).String()
}

// Clip is synthesized audio. Local backends speak directly and return a
// clip without Audio.
type Clip struct {
	ID          string
	Text        string
	Audio       []byte
	ContentType string
}

// Synthesizer converts sanitized text into a clip.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (*Clip, error)
}

// Player makes a synthesized clip available for listening.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
}

// PlaybackError wraps any failure on the speech path. It is logged, never returned by Speak.
type PlaybackError struct {
	Backend string
	Err     error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("speech playback via %s failed: %v", e.Backend, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

type Adapter struct {
	synth   Synthesizer
	player  Player
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	wg      sync.WaitGroup
	mu      sync.Mutex
	pending map[string]int
}

// NewAdapter wires a synthesizer to a player. A nil synthesizer disables speech.
func NewAdapter(synth Synthesizer, player Player, logger *zap.Logger, m *metrics.Metrics) *Adapter {
	return &Adapter{
		synth:   synth,
		player:  player,
		logger:  logging.OrNop(logger).Named("speech"),
		metrics: m,
		timeout: defaultPlaybackTimeout,
		pending: make(map[string]int),
	}
}

// Speak sanitizes text and plays it on a detached goroutine.
func (a *Adapter) Speak(text string) {
	if a == nil || a.synth == nil {
		return
	}
	clean := Sanitize(text)
	if clean == "" {
		return
	}

	id := ClipID(clean)
	a.track(id, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.track(id, -1)
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.play(ctx, clean); err != nil {
			a.metrics.PlaybackFailed(a.synth.Name())
			a.logger.Warn("speech playback failed", zap.Error(err))
		}
	}()
}

func (a *Adapter) play(ctx context.Context, clean string) error {
	clip, err := a.synth.Synthesize(ctx, clean)
	if err != nil {
		return &PlaybackError{Backend: a.synth.Name(), Err: err}
	}
	if clip == nil || len(clip.Audio) == 0 || a.player == nil {
		return nil
	}
	if err := a.player.Play(ctx, clip); err != nil {
		return &PlaybackError{Backend: a.synth.Name(), Err: err}
	}
	a.logger.Debug("speech clip ready", zap.String("clip", clip.ID), zap.Int("bytes", len(clip.Audio)))
	return nil
}

func (a *Adapter) track(id string, delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := a.pending[id] + delta; n > 0 {
		a.pending[id] = n
	} else {
		delete(a.pending, id)
	}
}

// Pending reports whether a Speak for clip id is still being synthesized.
func (a *Adapter) Pending(id string) bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending[id] > 0
}

// Synthesize runs the configured backend synchronously and returns its
// errors, for callers that serve the audio themselves.
func (a *Adapter) Synthesize(ctx context.Context, text string) (*Clip, error) {
	if a == nil || a.synth == nil {
		return nil, &PlaybackError{Backend: "none", Err: fmt.Errorf("speech is disabled")}
	}
	clip, err := a.synth.Synthesize(ctx, Sanitize(text))
	if err != nil {
		return nil, &PlaybackError{Backend: a.synth.Name(), Err: err}
	}
	return clip, nil
}

// Backend names the configured synthesizer.
func (a *Adapter) Backend() string {
	if a == nil || a.synth == nil {
		return "none"
	}
	return a.synth.Name()
}

// Wait blocks until every in-flight Speak has finished.
func (a *Adapter) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
