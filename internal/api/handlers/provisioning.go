// Package handlers implements the HTTP handlers mounted by the
// control plane's router.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitepilot/control-plane/internal/progress"
	"github.com/sitepilot/control-plane/internal/providers/registrar"
	"github.com/sitepilot/control-plane/internal/provisioning"
	"github.com/sitepilot/control-plane/pkg/models"
)

// ProvisioningHandlers mounts the Domain + Site workflow's HTTP
// surface.
type ProvisioningHandlers struct {
	engine *provisioning.Engine
}

// NewProvisioningHandlers builds a ProvisioningHandlers.
func NewProvisioningHandlers(engine *provisioning.Engine) *ProvisioningHandlers {
	return &ProvisioningHandlers{engine: engine}
}

type registrantRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Address1       string `json:"address1"`
	City           string `json:"city"`
	StateProvince  string `json:"state_province"`
	PostalCode     string `json:"postal_code"`
	Country        string `json:"country"`
	Phone          string `json:"phone"`
	EmailAddress   string `json:"email_address"`
}

func (r registrantRequest) toRegistrant() registrar.Registrant {
	return registrar.Registrant{
		FirstName: r.FirstName, LastName: r.LastName,
		Address1: r.Address1, City: r.City, StateProvince: r.StateProvince,
		PostalCode: r.PostalCode, Country: r.Country,
		Phone: r.Phone, EmailAddress: r.EmailAddress,
	}
}

type startWorkflowRequest struct {
	TenantID          string                   `json:"tenant_id"`
	Domain            string                   `json:"domain"`
	SiteName          string                   `json:"site_name"`
	RegisterNewDomain bool                     `json:"register_new_domain"`
	Registrant        registrantRequest        `json:"registrant"`
	Deployment        models.DeploymentContext `json:"deployment"`
	Content           models.ContentContext    `json:"content"`
}

type startWorkflowResponse struct {
	RunID string `json:"run_id"`
}

// StartDomainSiteWorkflow handles POST /api/v1/provisioning/domain-site.
func (h *ProvisioningHandlers) StartDomainSiteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req startWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	runID, _ := h.engine.Start(r.Context(), provisioning.Request{
		TenantID:          req.TenantID,
		Domain:            req.Domain,
		SiteName:          req.SiteName,
		RegisterNewDomain: req.RegisterNewDomain,
		Registrant:        req.Registrant.toRegistrant(),
		Deployment:        req.Deployment,
		Content:           req.Content,
	})

	respondJSON(w, http.StatusAccepted, startWorkflowResponse{RunID: runID})
}

// GetRun handles GET /api/v1/provisioning/runs/{runID}.
func (h *ProvisioningHandlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, ok := h.engine.GetRun(runID)
	if !ok {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// StreamProgress handles GET /api/v1/provisioning/runs/{runID}/events,
// streaming the run's progress channel as server-sent events. Because
// the channel is created at Start time and consumed here, this handler
// only supports one concurrent subscriber per run.
func (h *ProvisioningHandlers) StreamProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, ok := h.engine.GetRun(runID); !ok {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	ch, ok := h.engine.Sink(runID)
	if !ok {
		respondError(w, http.StatusNotFound, "run has no active progress channel")
		return
	}
	progress.ServeSSE(w, r, ch)
}
