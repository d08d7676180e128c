package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"phi.ai/agent-console/internal/logging"
	"phi.ai/agent-console/internal/metrics"
	"phi.ai/agent-console/internal/phiapi"
)

var (
	ErrSelectionRequired = errors.New("a selection is required to continue")
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrNoNextStep        = errors.New("already on the last step")
	ErrNoPreviousStep    = errors.New("already on the first step")
	ErrNotLastStep       = errors.New("finish is only available on the last step")
	ErrWizardComplete    = errors.New("persona already submitted")
)

type PersonaUpdater interface {
	UpdatePersona(ctx context.Context, draft phiapi.PersonaUpdate) (*phiapi.Persona, error)
}

type Step int

const (
	StepRisk Step = iota
	StepMarkets
	StepHorizon
	StepDomains
)

var Steps = []Step{StepRisk, StepMarkets, StepHorizon, StepDomains}

func (s Step) String() string {
	switch s {
	case StepRisk:
		return "risk"
	case StepMarkets:
		return "markets"
	case StepHorizon:
		return "horizon"
	case StepDomains:
		return "domains"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// MultiSelect reports whether the step accepts more than one value.
func (s Step) MultiSelect() bool {
	return s == StepMarkets || s == StepDomains
}

// FreeForm reports whether values outside Options are accepted.
func (s Step) FreeForm() bool {
	return s == StepDomains
}

// Options lists the choices offered for a step. For domains they are suggestions.
func (s Step) Options() []string {
	switch s {
	case StepRisk:
		return []string{string(phiapi.RiskLow), string(phiapi.RiskMedium), string(phiapi.RiskHigh)}
	case StepMarkets:
		return []string{"crypto", "stocks", "sports", "politics", "economics"}
	case StepHorizon:
		return []string{string(phiapi.Horizon1d), string(phiapi.Horizon7d), string(phiapi.Horizon30d), string(phiapi.Horizon90d)}
	case StepDomains:
		return []string{"crypto", "stocks", "macroeconomics", "sports", "technology"}
	default:
		return nil
	}
}

// Wizard collects a persona draft over four steps and submits it once.
type Wizard struct {
	userID     string
	updater    PersonaUpdater
	onComplete func(ctx context.Context) error
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu         sync.Mutex
	step       Step
	selections map[Step][]string
	// saved is set once UpdatePersona succeeds; complete once onComplete
	// has also succeeded.
	saved    *phiapi.Persona
	complete bool
}

type WizardDeps struct {
	Updater PersonaUpdater
	// OnComplete runs after a successful submission, e.g. to switch the
	// session to the conversation view.
	OnComplete func(ctx context.Context) error
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

func NewWizard(userID string, deps WizardDeps) *Wizard {
	return &Wizard{
		userID:     userID,
		updater:    deps.Updater,
		onComplete: deps.OnComplete,
		logger:     logging.OrNop(deps.Logger).Named("wizard").With(zap.String("user", userID)),
		metrics:    deps.Metrics,
		selections: make(map[Step][]string, len(Steps)),
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Complete() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.complete
}

// Selection returns the current values of step.
func (w *Wizard) Selection(step Step) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.selections[step])
}

// Select replaces the current step's selection.
func (w *Wizard) Select(values ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cleaned, err := normalize(w.step, values)
	if err != nil {
		return err
	}
	if !w.step.MultiSelect() && len(cleaned) > 1 {
		return fmt.Errorf("%w: %s takes exactly one value", ErrInvalidSelection, w.step)
	}
	w.selections[w.step] = cleaned
	return nil
}

// Toggle flips value in a multi-select step. In a single-select step it
// becomes the only selection.
func (w *Wizard) Toggle(value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cleaned, err := normalize(w.step, []string{value})
	if err != nil {
		return err
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidSelection)
	}
	v := cleaned[0]
	if !w.step.MultiSelect() {
		w.selections[w.step] = []string{v}
		return nil
	}
	current := w.selections[w.step]
	if i := slices.Index(current, v); i >= 0 {
		w.selections[w.step] = slices.Delete(slices.Clone(current), i, i+1)
		return nil
	}
	w.selections[w.step] = append(slices.Clone(current), v)
	return nil
}

func (w *Wizard) CanContinue() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.satisfied(w.step)
}

func (w *Wizard) satisfied(step Step) bool {
	n := len(w.selections[step])
	if step.MultiSelect() {
		return n >= 1
	}
	return n == 1
}

func (w *Wizard) Continue() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.satisfied(w.step) {
		return ErrSelectionRequired
	}
	if int(w.step) == len(Steps)-1 {
		return ErrNoNextStep
	}
	w.step++
	return nil
}

// Back moves to the previous step. Every step keeps its selection.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepRisk {
		return ErrNoPreviousStep
	}
	w.step--
	return nil
}

func (w *Wizard) Draft() phiapi.PersonaUpdate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft()
}

func (w *Wizard) draft() phiapi.PersonaUpdate {
	d := phiapi.PersonaUpdate{
		UserID:     w.userID,
		Markets:    slices.Clone(w.selections[StepMarkets]),
		DomainTags: slices.Clone(w.selections[StepDomains]),
	}
	if risk := w.selections[StepRisk]; len(risk) == 1 {
		d.RiskTolerance = phiapi.RiskTolerance(risk[0])
	}
	if horizon := w.selections[StepHorizon]; len(horizon) == 1 {
		d.Horizon = phiapi.Horizon(horizon[0])
	}
	return d
}

// Finish submits the draft with exactly one UpdatePersona call. On failure
// the draft is kept so the caller can retry. If only the completion hook
// fails, a retry runs the hook again without resubmitting.
func (w *Wizard) Finish(ctx context.Context) (*phiapi.Persona, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.complete {
		return nil, ErrWizardComplete
	}
	if w.saved == nil {
		if int(w.step) != len(Steps)-1 {
			return nil, ErrNotLastStep
		}
		for _, step := range Steps {
			if !w.satisfied(step) {
				return nil, fmt.Errorf("%w: %s", ErrSelectionRequired, step)
			}
		}

		persona, err := w.updater.UpdatePersona(ctx, w.draft())
		if err != nil {
			w.metrics.PersonaSubmitted("error")
			w.logger.Warn("persona update failed", zap.Error(err))
			return nil, err
		}
		w.saved = persona
		w.metrics.PersonaSubmitted("ok")
	}

	if w.onComplete != nil {
		if err := w.onComplete(ctx); err != nil {
			w.logger.Warn("persona saved but completion failed", zap.Error(err))
			return w.saved, fmt.Errorf("persona saved but view switch failed: %w", err)
		}
	}
	w.complete = true
	return w.saved, nil
}

func normalize(step Step, values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			if step.FreeForm() {
				continue
			}
			return nil, fmt.Errorf("%w: empty %s value", ErrInvalidSelection, step)
		}
		if !step.FreeForm() {
			v = strings.ToLower(v)
			if !slices.Contains(step.Options(), v) {
				return nil, fmt.Errorf("%w: %q is not a %s option", ErrInvalidSelection, raw, step)
			}
		}
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out, nil
}
