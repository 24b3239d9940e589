package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitepilot/control-plane/internal/editor"
	"github.com/sitepilot/control-plane/pkg/models"
)

// EditorHandlers mounts the Edit Session Executor's HTTP surface.
type EditorHandlers struct {
	executor *editor.Executor
}

// NewEditorHandlers builds an EditorHandlers.
func NewEditorHandlers(e *editor.Executor) *EditorHandlers {
	return &EditorHandlers{executor: e}
}

type createSessionRequest struct {
	TenantID string `json:"tenant_id"`
	SiteID   string `json:"site_id"`
	SiteURL  string `json:"site_url"`
}

// CreateSession handles POST /api/v1/editor/sessions.
func (h *EditorHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	session, err := h.executor.CreateSession(r.Context(), req.TenantID, req.SiteID, req.SiteURL)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

type sendMessageRequest struct {
	SiteURL string `json:"site_url"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Message string                `json:"message"`
	Changes []models.ActionResult `json:"changes"`
}

// SendMessage handles POST /api/v1/editor/sessions/{sessionID}/messages.
func (h *EditorHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	displayText, results, err := h.executor.SendMessage(r.Context(), sessionID, req.SiteURL, req.Message)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if results == nil {
		results = []models.ActionResult{}
	}
	respondJSON(w, http.StatusOK, sendMessageResponse{Message: displayText, Changes: results})
}
