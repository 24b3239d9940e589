package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sitepilot/control-plane/internal/onboarding"
)

// OnboardingHandlers mounts the Onboarding Workflow's HTTP surface.
type OnboardingHandlers struct {
	workflow *onboarding.Workflow
}

// NewOnboardingHandlers builds an OnboardingHandlers.
func NewOnboardingHandlers(w *onboarding.Workflow) *OnboardingHandlers {
	return &OnboardingHandlers{workflow: w}
}

type startCopyRequest struct {
	SourceURL string `json:"source_url"`
}

// StartCopy handles POST /api/v1/onboarding/copy.
func (h *OnboardingHandlers) StartCopy(w http.ResponseWriter, r *http.Request) {
	var req startCopyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.workflow.RunCopy(r.Context(), req.SourceURL)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type startVoiceRequest struct {
	SiteTitle string                       `json:"site_title"`
	Answers   []onboarding.InterviewAnswer `json:"answers"`
}

// StartVoice handles POST /api/v1/onboarding/voice.
func (h *OnboardingHandlers) StartVoice(w http.ResponseWriter, r *http.Request) {
	var req startVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.workflow.RunVoice(r.Context(), req.SiteTitle, req.Answers)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
