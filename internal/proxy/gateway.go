// Package proxy implements the multi-tenant AI Proxy Gateway: bearer
// auth against a ProxySite, per-tier quota and rate enforcement,
// model-prefix vendor dispatch, and usage logging.
package proxy

import (
	"context"
	"crypto/subtle"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sitepilot/control-plane/internal/providers"
	"github.com/sitepilot/control-plane/internal/providers/aivendor"
	"github.com/sitepilot/control-plane/internal/store"
	"github.com/sitepilot/control-plane/pkg/models"
)

var apiKeyPattern = regexp.MustCompile(`^wts_[A-Za-z0-9]{40}$`)

// Gateway dispatches chat completions to the configured AI vendor
// drivers, enforcing per-tenant auth, quota, and rate limits first.
type Gateway struct {
	store   store.Store
	drivers map[string]aivendor.Client // keyed by vendor name: openai, gemini, claude

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // keyed by ProxySite.ID
}

// New builds a Gateway against the given store and vendor drivers.
func New(s store.Store, drivers map[string]aivendor.Client) *Gateway {
	return &Gateway{store: s, drivers: drivers, limiters: make(map[string]*rate.Limiter)}
}

// Authenticate validates bearer against the wts_ key format and looks
// up the owning, non-revoked ProxySite. The final comparison is done
// with a constant-time equality check against the stored key so that a
// successful store lookup can never leak timing information about how
// much of the key matched.
func (g *Gateway) Authenticate(ctx context.Context, bearer string) (*models.ProxySite, error) {
	if !apiKeyPattern.MatchString(bearer) {
		return nil, &providers.Error{Kind: providers.KindAuth, VendorMessage: "malformed api key"}
	}

	site, err := g.store.GetProxySiteByAPIKey(ctx, bearer)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindAuth, VendorMessage: "unknown api key"}
	}
	if subtle.ConstantTimeCompare([]byte(bearer), []byte(site.APIKey)) != 1 {
		return nil, &providers.Error{Kind: providers.KindAuth, VendorMessage: "unknown api key"}
	}
	if site.Status != "active" {
		return nil, &providers.Error{Kind: providers.KindAuth, VendorMessage: "api key is revoked"}
	}
	return site, nil
}

// vendorForModel returns the driver name for a model per its prefix.
func vendorForModel(model string) (string, error) {
	switch {
	case strings.HasPrefix(model, "gpt-"):
		return "openai", nil
	case strings.HasPrefix(model, "gemini-"):
		return "gemini", nil
	case strings.HasPrefix(model, "claude-"):
		return "claude", nil
	default:
		return "", &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "unrecognized model prefix: " + model}
	}
}

// checkQuota enforces the site's tier's monthly token budget.
func (g *Gateway) checkQuota(ctx context.Context, site *models.ProxySite) error {
	tier, err := g.store.GetTier(ctx, site.TierName)
	if err != nil {
		return &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "tier not found: " + site.TierName}
	}

	monthStart := time.Date(time.Now().Year(), time.Now().Month(), 1, 0, 0, 0, 0, time.UTC)
	used, err := g.store.SumTokensSince(ctx, site.ID, monthStart)
	if err != nil {
		return err
	}
	if used >= tier.MonthlyTokenQuota {
		return &providers.Error{Kind: providers.KindQuotaExceeded, VendorMessage: "monthly token quota exceeded", Used: used, Limit: tier.MonthlyTokenQuota}
	}

	if len(tier.AllowedModels) > 0 {
		// model allowlist enforcement happens in Chat once the model is
		// known; tier is threaded through for that check.
	}
	return nil
}

func (g *Gateway) limiterFor(site *models.ProxySite, tier *models.SubscriptionTier) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[site.ID]
	if !ok {
		rps := float64(tier.RequestsPerMinute) / 60.0
		l = rate.NewLimiter(rate.Limit(rps), tier.RequestsPerMinute)
		g.limiters[site.ID] = l
	}
	return l
}

func modelAllowed(tier *models.SubscriptionTier, model string) bool {
	if len(tier.AllowedModels) == 0 {
		return true
	}
	for _, m := range tier.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// ChatResponse is the OpenAI-compatible envelope returned by Chat.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion choice in a ChatResponse.
type Choice struct {
	Index   int                 `json:"index"`
	Message models.ChatMessage  `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

// Usage is the OpenAI-compatible usage block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chat runs one proxied chat completion on behalf of site, enforcing
// quota, rate limit, and tier model allowlist before dispatching. Every
// call that reaches vendor routing is logged, success or failure; a
// request rejected by the tier lookup, quota, allowlist, or rate-limit
// check returns its error without writing a log row. maxTokens
// and temperature are passed through to the vendor driver; maxTokens
// <= 0 falls back to aivendor.DefaultMaxTokens.
func (g *Gateway) Chat(ctx context.Context, site *models.ProxySite, model string, messages []models.ChatMessage, maxTokens int, temperature float64) (*ChatResponse, error) {
	tier, err := g.store.GetTier(ctx, site.TierName)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "tier not found: " + site.TierName}
	}

	if err := g.checkQuota(ctx, site); err != nil {
		return nil, err
	}
	if !modelAllowed(tier, model) {
		return nil, &providers.Error{Kind: providers.KindModelNotAllowed, VendorMessage: "model not permitted on this tier"}
	}
	if !g.limiterFor(site, tier).Allow() {
		return nil, &providers.Error{Kind: providers.KindRateLimited, VendorMessage: "rate limit exceeded", Retryable: true}
	}

	vendor, err := vendorForModel(model)
	if err != nil {
		g.logResult(ctx, site.ID, model, "", 0, 0, 0, 400, err)
		return nil, err
	}
	driver, ok := g.drivers[vendor]
	if !ok {
		err := &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "vendor not configured: " + vendor}
		g.logResult(ctx, site.ID, model, vendor, 0, 0, 0, 502, err)
		return nil, err
	}

	resp, err := driver.Complete(ctx, model, messages, maxTokens, temperature)
	if err != nil {
		g.logResult(ctx, site.ID, model, vendor, 0, 0, 0, 502, err)
		return nil, err
	}

	g.logResult(ctx, site.ID, model, vendor, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens, 200, nil)

	return &ChatResponse{
		ID:    "chatcmpl-" + uuid.NewString(),
		Model: resp.Model,
		Choices: []Choice{{
			Index:        0,
			Message:      models.ChatMessage{Role: "assistant", Content: resp.Content},
			FinishReason: "stop",
		}},
		Usage: Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens, TotalTokens: resp.Usage.TotalTokens},
	}, nil
}

func (g *Gateway) logResult(ctx context.Context, siteID, model, vendor string, prompt, completion, total, status int, err error) {
	entry := &models.ProxyRequestLog{
		ID:               uuid.NewString(),
		ProxySiteID:      siteID,
		Model:            model,
		Vendor:           vendor,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
		StatusCode:       status,
		CreatedAt:        time.Now(),
	}
	if err != nil {
		entry.Err = err.Error()
	}
	// logging is fire-and-forget: a logging failure must never fail the
	// proxied request itself.
	_ = g.store.AppendRequestLog(ctx, entry)
}

// UsageSummary reports a site's token usage since the start of the
// current month against its tier's quota.
func (g *Gateway) UsageSummary(ctx context.Context, site *models.ProxySite) (used, quota int64, err error) {
	tier, err := g.store.GetTier(ctx, site.TierName)
	if err != nil {
		return 0, 0, err
	}
	monthStart := time.Date(time.Now().Year(), time.Now().Month(), 1, 0, 0, 0, 0, time.UTC)
	used, err = g.store.SumTokensSince(ctx, site.ID, monthStart)
	if err != nil {
		return 0, 0, err
	}
	return used, tier.MonthlyTokenQuota, nil
}
