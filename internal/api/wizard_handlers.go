package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"phi.ai/agent-console/internal/core"
	"phi.ai/agent-console/internal/phiapi"
)

type WizardState struct {
	Step        string               `json:"step"`
	StepIndex   int                  `json:"stepIndex"`
	MultiSelect bool                 `json:"multiSelect"`
	FreeForm    bool                 `json:"freeForm"`
	Options     []string             `json:"options"`
	Selection   []string             `json:"selection"`
	CanContinue bool                 `json:"canContinue"`
	Complete    bool                 `json:"complete"`
	Draft       phiapi.PersonaUpdate `json:"draft"`
}

type WizardSelectRequest struct {
	Values []string `json:"values"`
}

type WizardToggleRequest struct {
	Value string `json:"value"`
}

type WizardFinishResponse struct {
	Persona *phiapi.Persona `json:"persona"`
	View    string          `json:"view"`
}

func (h *APIHandler) wizard(w http.ResponseWriter, r *http.Request) (*core.Wizard, bool) {
	wiz, err := h.deps.Sessions.Wizard(r.Context(), sessionFrom(r.Context()).ID)
	if err != nil {
		h.sessionError(w, err)
		return nil, false
	}
	return wiz, true
}

func (h *APIHandler) writeWizardState(w http.ResponseWriter, wiz *core.Wizard) {
	step := wiz.Step()
	selection := wiz.Selection(step)
	if selection == nil {
		selection = []string{}
	}
	writeJSON(w, http.StatusOK, WizardState{
		Step:        step.String(),
		StepIndex:   int(step),
		MultiSelect: step.MultiSelect(),
		FreeForm:    step.FreeForm(),
		Options:     step.Options(),
		Selection:   selection,
		CanContinue: wiz.CanContinue(),
		Complete:    wiz.Complete(),
		Draft:       wiz.Draft(),
	})
}

func (h *APIHandler) WizardStateHandler(w http.ResponseWriter, r *http.Request) {
	if wiz, ok := h.wizard(w, r); ok {
		h.writeWizardState(w, wiz)
	}
}

func (h *APIHandler) WizardSelectHandler(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req WizardSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := wiz.Select(req.Values...); err != nil {
		wizardError(w, err)
		return
	}
	h.writeWizardState(w, wiz)
}

func (h *APIHandler) WizardToggleHandler(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req WizardToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := wiz.Toggle(req.Value); err != nil {
		wizardError(w, err)
		return
	}
	h.writeWizardState(w, wiz)
}

func (h *APIHandler) WizardContinueHandler(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	if err := wiz.Continue(); err != nil {
		wizardError(w, err)
		return
	}
	h.writeWizardState(w, wiz)
}

func (h *APIHandler) WizardBackHandler(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	if err := wiz.Back(); err != nil {
		wizardError(w, err)
		return
	}
	h.writeWizardState(w, wiz)
}

func (h *APIHandler) WizardFinishHandler(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	persona, err := wiz.Finish(r.Context())
	if err != nil {
		var be *phiapi.BackendError
		if errors.As(err, &be) {
			h.logger.Warn("persona submission failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		wizardError(w, err)
		return
	}

	session, err := h.deps.Sessions.Session(r.Context(), sessionFrom(r.Context()).ID)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WizardFinishResponse{Persona: persona, View: string(session.View)})
}

func wizardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrSelectionRequired),
		errors.Is(err, core.ErrNoNextStep),
		errors.Is(err, core.ErrNoPreviousStep),
		errors.Is(err, core.ErrNotLastStep),
		errors.Is(err, core.ErrWizardComplete):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
