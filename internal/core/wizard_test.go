package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phi.ai/agent-console/internal/phiapi"
	"phi.ai/agent-console/internal/store"
)

func startWizard(t *testing.T, f *fixture) (*Wizard, string) {
	t.Helper()
	ctx := context.Background()
	session, err := f.manager.Start(ctx, "demoUser", nil)
	require.NoError(t, err)
	wiz, err := f.manager.Wizard(ctx, session.ID)
	require.NoError(t, err)
	return wiz, session.ID
}

func fillWizard(t *testing.T, wiz *Wizard) {
	t.Helper()
	require.NoError(t, wiz.Select("high"))
	require.NoError(t, wiz.Continue())
	require.NoError(t, wiz.Toggle("crypto"))
	require.NoError(t, wiz.Toggle("stocks"))
	require.NoError(t, wiz.Continue())
	require.NoError(t, wiz.Select("30d"))
	require.NoError(t, wiz.Continue())
	require.NoError(t, wiz.Select("Crypto"))
}

func TestWizardFinishSubmitsOnceAndSwitchesView(t *testing.T) {
	f := newFixture(t)
	wiz, sessionID := startWizard(t, f)
	ctx := context.Background()

	fillWizard(t, wiz)
	persona, err := wiz.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demoUser", persona.UserID)

	require.Len(t, f.backend.updates, 1)
	assert.Equal(t, phiapi.PersonaUpdate{
		UserID:        "demoUser",
		RiskTolerance: phiapi.RiskHigh,
		Markets:       []string{"crypto", "stocks"},
		Horizon:       phiapi.Horizon30d,
		DomainTags:    []string{"Crypto"},
	}, f.backend.updates[0])

	session, err := f.manager.Session(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, store.ViewConversation, session.View)
	assert.True(t, wiz.Complete())

	_, err = wiz.Finish(ctx)
	assert.ErrorIs(t, err, ErrWizardComplete)
	assert.Len(t, f.backend.updates, 1)
}

func TestWizardFinishFailureKeepsDraft(t *testing.T) {
	f := newFixture(t)
	f.backend.updateErr = errors.New("backend down")
	wiz, sessionID := startWizard(t, f)
	ctx := context.Background()

	fillWizard(t, wiz)
	before := wiz.Draft()
	_, err := wiz.Finish(ctx)
	require.Error(t, err)
	assert.Equal(t, before, wiz.Draft())
	assert.False(t, wiz.Complete())

	session, err := f.manager.Session(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, store.ViewWizard, session.View)

	f.backend.updateErr = nil
	_, err = wiz.Finish(ctx)
	require.NoError(t, err)
	assert.Len(t, f.backend.updates, 2)
}

func TestWizardContinueRequiresSelection(t *testing.T) {
	f := newFixture(t)
	wiz, _ := startWizard(t, f)

	assert.False(t, wiz.CanContinue())
	assert.ErrorIs(t, wiz.Continue(), ErrSelectionRequired)
	assert.Equal(t, StepRisk, wiz.Step())

	require.NoError(t, wiz.Select("low"))
	require.NoError(t, wiz.Continue())

	require.NoError(t, wiz.Toggle("crypto"))
	require.NoError(t, wiz.Toggle("crypto"))
	assert.False(t, wiz.CanContinue())
	assert.ErrorIs(t, wiz.Continue(), ErrSelectionRequired)
}

func TestWizardBackPreservesValues(t *testing.T) {
	f := newFixture(t)
	wiz, _ := startWizard(t, f)
	fillWizard(t, wiz)

	require.NoError(t, wiz.Back())
	require.NoError(t, wiz.Back())
	require.NoError(t, wiz.Back())
	assert.Equal(t, StepRisk, wiz.Step())
	assert.ErrorIs(t, wiz.Back(), ErrNoPreviousStep)

	assert.Equal(t, []string{"high"}, wiz.Selection(StepRisk))
	assert.Equal(t, []string{"crypto", "stocks"}, wiz.Selection(StepMarkets))
	assert.Equal(t, []string{"30d"}, wiz.Selection(StepHorizon))
	assert.Equal(t, []string{"Crypto"}, wiz.Selection(StepDomains))
}

func TestWizardRejectsInvalidSelections(t *testing.T) {
	f := newFixture(t)
	wiz, _ := startWizard(t, f)

	assert.ErrorIs(t, wiz.Select("reckless"), ErrInvalidSelection)
	assert.ErrorIs(t, wiz.Select("low", "high"), ErrInvalidSelection)
	require.NoError(t, wiz.Select("low"))
	require.NoError(t, wiz.Toggle("medium"))
	assert.Equal(t, []string{"medium"}, wiz.Selection(StepRisk))
	require.NoError(t, wiz.Continue())

	require.NoError(t, wiz.Select("crypto", "CRYPTO", "sports"))
	assert.Equal(t, []string{"crypto", "sports"}, wiz.Selection(StepMarkets))
	assert.ErrorIs(t, wiz.Toggle("weather"), ErrInvalidSelection)
}

func TestWizardFinishOnlyOnLastStep(t *testing.T) {
	f := newFixture(t)
	wiz, _ := startWizard(t, f)
	require.NoError(t, wiz.Select("low"))

	_, err := wiz.Finish(context.Background())
	assert.ErrorIs(t, err, ErrNotLastStep)
	assert.Empty(t, f.backend.updates)
}

func TestWizardDomainsAreFreeForm(t *testing.T) {
	f := newFixture(t)
	wiz, _ := startWizard(t, f)
	fillWizard(t, wiz)

	require.NoError(t, wiz.Select(" quantum computing ", "", "quantum computing"))
	assert.Equal(t, []string{"quantum computing"}, wiz.Selection(StepDomains))
	assert.ErrorIs(t, wiz.Continue(), ErrNoNextStep)
}

func TestWizardRetryAfterViewSwitchFailureDoesNotResubmit(t *testing.T) {
	backend := &fakeBackend{}
	hookErr := errors.New("database is locked")
	var hookCalls int
	wiz := NewWizard("demoUser", WizardDeps{
		Updater: backend,
		OnComplete: func(context.Context) error {
			hookCalls++
			if hookCalls == 1 {
				return hookErr
			}
			return nil
		},
	})
	ctx := context.Background()
	fillWizard(t, wiz)

	persona, err := wiz.Finish(ctx)
	require.ErrorIs(t, err, hookErr)
	require.NotNil(t, persona)
	assert.False(t, wiz.Complete())

	persona, err = wiz.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demoUser", persona.UserID)
	assert.True(t, wiz.Complete())
	assert.Equal(t, 2, hookCalls)
	assert.Len(t, backend.updates, 1)

	_, err = wiz.Finish(ctx)
	assert.ErrorIs(t, err, ErrWizardComplete)
}
