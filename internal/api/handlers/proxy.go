package handlers

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sitepilot/control-plane/internal/api/middleware"
	"github.com/sitepilot/control-plane/internal/proxy"
	"github.com/sitepilot/control-plane/internal/providers"
	"github.com/sitepilot/control-plane/internal/store"
	"github.com/sitepilot/control-plane/pkg/models"
)

// ProxyHandlers mounts the AI Proxy Gateway's HTTP surface.
type ProxyHandlers struct {
	gateway *proxy.Gateway
	store   store.Store
}

// NewProxyHandlers builds a ProxyHandlers.
func NewProxyHandlers(gw *proxy.Gateway, s store.Store) *ProxyHandlers {
	return &ProxyHandlers{gateway: gw, store: s}
}

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature float64              `json:"temperature,omitempty"`
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *ProxyHandlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	site, ok := middleware.ProxySiteFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing authenticated site")
		return
	}

	var req chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	resp, err := h.gateway.Chat(r.Context(), site, req.Model, req.Messages, req.MaxTokens, req.Temperature)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Usage handles GET /v1/usage.
func (h *ProxyHandlers) Usage(w http.ResponseWriter, r *http.Request) {
	site, ok := middleware.ProxySiteFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing authenticated site")
		return
	}

	used, quota, err := h.gateway.UsageSummary(r.Context(), site)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"used_tokens": used, "monthly_token_quota": quota})
}

// Models handles GET /v1/models, returning a fixed list of model names
// whose prefixes the gateway can route.
func (h *ProxyHandlers) Models(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{
		"data": {"gpt-4o", "gpt-4o-mini", "gemini-1.5-pro", "gemini-1.5-flash", "claude-3-5-sonnet"},
	})
}

type registerSiteRequest struct {
	TenantID string `json:"tenant_id"`
	Domain   string `json:"domain"`
	TierName string `json:"tier_name"`
}

type registerSiteResponse struct {
	SiteID string `json:"site_id"`
	APIKey string `json:"api_key"`
}

// RegisterSite handles POST /api/v1/proxy/admin/sites.
func (h *ProxyHandlers) RegisterSite(w http.ResponseWriter, r *http.Request) {
	var req registerSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TierName == "" {
		req.TierName = "free"
	}

	site := &models.ProxySite{
		ID:        uuid.NewString(),
		TenantID:  req.TenantID,
		Domain:    req.Domain,
		APIKey:    "wts_" + newAPIKeySuffix(),
		TierName:  req.TierName,
		Status:    "active",
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateProxySite(r.Context(), site); err != nil {
		writeProviderError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, registerSiteResponse{SiteID: site.ID, APIKey: site.APIKey})
}

// RevokeSite handles POST /api/v1/proxy/admin/sites/{siteID}/revoke.
func (h *ProxyHandlers) RevokeSite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	if err := h.store.UpdateProxySiteStatus(r.Context(), siteID, "revoked"); err != nil {
		writeProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type updateTierRequest struct {
	TierName string `json:"tier_name"`
}

// UpdateTier handles POST /api/v1/proxy/admin/sites/{siteID}/tier. An
// unknown tier name is rejected with an error rather than silently
// applied, since silently mis-provisioning a tenant's quota on a typo
// is worse than a loud failure.
func (h *ProxyHandlers) UpdateTier(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	var req updateTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.store.UpdateProxySiteTier(r.Context(), siteID, req.TierName); err != nil {
		writeProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// newAPIKeySuffix returns a 40-character [A-Za-z0-9] string suitable
// for the wts_ API key format, drawn from crypto/rand. Unlike slicing
// a UUID's string form, base32 encoding never emits hyphens.
func newAPIKeySuffix() string {
	buf := make([]byte, 25)
	if _, err := rand.Read(buf); err != nil {
		panic("handlers: reading random bytes: " + err.Error())
	}
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	return strings.ToLower(encoded)[:40]
}

func writeProviderError(w http.ResponseWriter, err error) {
	var notFound *store.ErrNotFound
	if errors.As(err, &notFound) {
		respondErrorTyped(w, http.StatusNotFound, "not_found", notFound.Error())
		return
	}

	var pe *providers.Error
	if !errors.As(err, &pe) {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if pe.Kind == providers.KindQuotaExceeded {
		respondQuotaExceeded(w, pe.VendorMessage, pe.Used, pe.Limit)
		return
	}

	status := http.StatusBadGateway
	errType := "upstream_error"
	switch pe.Kind {
	case providers.KindAuth:
		status, errType = http.StatusUnauthorized, "auth_error"
	case providers.KindModelNotAllowed:
		status, errType = http.StatusForbidden, "model_not_allowed"
	case providers.KindNotFound:
		status, errType = http.StatusNotFound, "not_found"
	case providers.KindConflict:
		status, errType = http.StatusConflict, "conflict"
	case providers.KindRateLimited:
		status, errType = http.StatusTooManyRequests, "rate_limited"
	case providers.KindUpstreamInvalid:
		status, errType = http.StatusBadRequest, "invalid_request"
	}
	respondErrorTyped(w, status, errType, pe.VendorMessage)
}
