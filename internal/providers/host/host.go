// Package host implements a client for an InstaWP-style managed
// WordPress hosting API: site creation, readiness polling, and domain
// mapping.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sitepilot/control-plane/internal/config"
	"github.com/sitepilot/control-plane/internal/providers"
)

const baseURL = "https://app.instawp.io/api/v2"

// Defaults applied to every site creation request unless overridden.
const (
	DefaultWPVersion  = "6.8.1"
	DefaultPHPVersion = "8.0"
	DefaultPlanID     = 2
	DefaultIsReserved = true
)

// Client talks to the managed host's REST API.
type Client struct {
	httpClient *http.Client
	apiKey     string
}

// New builds a Client from cfg.
func New(cfg config.HostConfig) *Client {
	return &Client{httpClient: &http.Client{Timeout: 30 * time.Second}, apiKey: cfg.APIKey}
}

// Site is the host's representation of a provisioned WordPress
// instance.
type Site struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	AdminURL   string `json:"admin_url"`
	Status     string `json:"status"`
	IPAddress  string `json:"ip_address"`
}

type createSiteRequest struct {
	SiteName   string `json:"site_name"`
	WPVersion  string `json:"wp_version"`
	PHPVersion string `json:"php_version"`
	PlanID     int    `json:"plan_id"`
	IsReserved bool   `json:"is_reserved"`
}

// CreateSite requests a new WordPress instance named siteName, using
// the documented defaults for WordPress/PHP version, plan, and
// reservation.
func (c *Client) CreateSite(ctx context.Context, siteName string) (*Site, error) {
	body := createSiteRequest{
		SiteName:   siteName,
		WPVersion:  DefaultWPVersion,
		PHPVersion: DefaultPHPVersion,
		PlanID:     DefaultPlanID,
		IsReserved: DefaultIsReserved,
	}

	var site Site
	err := providers.Retry(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/sites", body, &site)
	})
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// WaitUntilReady polls the site's status until it reports "live", with
// a 10s interval and a 300s total budget. If the budget is exhausted it
// returns a non-retryable *providers.Error of kind KindUpstreamFailure;
// there is no separate not-ready error kind.
func (c *Client) WaitUntilReady(ctx context.Context, siteID string) (*Site, error) {
	const (
		interval = 10 * time.Second
		budget   = 300 * time.Second
	)
	deadline := time.Now().Add(budget)

	for {
		site, err := c.GetSite(ctx, siteID)
		if err != nil {
			return nil, err
		}
		if site.Status == "live" {
			return site, nil
		}
		if time.Now().After(deadline) {
			return nil, &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: "site did not become ready within budget", Retryable: false}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// GetSite fetches the current state of siteID.
func (c *Client) GetSite(ctx context.Context, siteID string) (*Site, error) {
	var site Site
	err := providers.Retry(ctx, func(ctx context.Context) error {
		return c.get(ctx, fmt.Sprintf("/sites/%s", siteID), &site)
	})
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// MapDomain points domain at siteID. It is idempotent: mapping the
// same domain to the same site twice succeeds without creating a
// duplicate mapping.
func (c *Client) MapDomain(ctx context.Context, siteID, domain string) error {
	existing, err := c.listMappedDomains(ctx, siteID)
	if err != nil {
		return err
	}
	for _, d := range existing {
		if d == domain {
			return nil
		}
	}

	return providers.Retry(ctx, func(ctx context.Context) error {
		return c.post(ctx, fmt.Sprintf("/sites/%s/domains", siteID), map[string]string{"domain": domain}, nil)
	})
}

func (c *Client) listMappedDomains(ctx context.Context, siteID string) ([]string, error) {
	var resp struct {
		Domains []string `json:"domains"`
	}
	err := providers.Retry(ctx, func(ctx context.Context) error {
		return c.get(ctx, fmt.Sprintf("/sites/%s/domains", siteID), &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Domains, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Cause: err}
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: err.Error(), Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &providers.Error{Kind: providers.KindAuth, HTTPStatus: resp.StatusCode, VendorMessage: "host rejected credentials"}
	}
	if resp.StatusCode == http.StatusNotFound {
		return &providers.Error{Kind: providers.KindNotFound, HTTPStatus: resp.StatusCode, VendorMessage: "site not found"}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &providers.Error{Kind: providers.KindRateLimited, HTTPStatus: resp.StatusCode, VendorMessage: "host rate limited request", Retryable: true}
	}
	if resp.StatusCode >= 500 {
		return &providers.Error{Kind: providers.KindUpstreamFailure, HTTPStatus: resp.StatusCode, VendorMessage: "host returned a server error", Retryable: true}
	}
	if resp.StatusCode == http.StatusConflict {
		return &providers.Error{Kind: providers.KindConflict, HTTPStatus: resp.StatusCode, VendorMessage: "host reported a conflict"}
	}
	if resp.StatusCode >= 400 {
		return &providers.Error{Kind: providers.KindUpstreamInvalid, HTTPStatus: resp.StatusCode, VendorMessage: "host rejected request"}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "malformed host response", Cause: err}
	}
	return nil
}

// siteRequest posts body to path on a live site's own REST API
// (siteURL + "/wp-json/sitepilot/v1" + path), as distinct from the
// host management API used by CreateSite/GetSite/MapDomain above. out,
// when non-nil, receives the decoded JSON response body.
func (c *Client) siteRequest(ctx context.Context, siteURL, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: err.Error(), Cause: err}
	}

	return providers.Retry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, siteURL+"/wp-json/sitepilot/v1"+path, bytes.NewReader(buf))
		if err != nil {
			return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Cause: err}
		}
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, out)
	})
}

// UpdateSettings applies site-wide settings (title, tagline, ...).
func (c *Client) UpdateSettings(ctx context.Context, siteURL string, settings map[string]string) error {
	return c.siteRequest(ctx, siteURL, "/settings", settings, nil)
}

// UploadAsset sets the given asset kind ("logo" or "favicon") to
// assetURL.
func (c *Client) UploadAsset(ctx context.Context, siteURL, kind, assetURL string) error {
	return c.siteRequest(ctx, siteURL, "/assets", map[string]string{"kind": kind, "url": assetURL}, nil)
}

// InjectCustomCSS sets the site's custom CSS block.
func (c *Client) InjectCustomCSS(ctx context.Context, siteURL, css string) error {
	return c.siteRequest(ctx, siteURL, "/customizer/css", map[string]string{"css": css}, nil)
}

// InstallPlugin installs and activates slug, applying config (if any)
// as plugin-specific settings. If the plugin is already active, the
// site's REST API reports a conflict which this treats as success: the
// desired end state already holds.
func (c *Client) InstallPlugin(ctx context.Context, siteURL, slug string, config map[string]string) error {
	body := map[string]interface{}{"slug": slug, "action": "activate"}
	if len(config) > 0 {
		body["config"] = config
	}
	err := c.siteRequest(ctx, siteURL, "/plugins", body, nil)
	var pe *providers.Error
	if e, ok := err.(*providers.Error); ok {
		pe = e
	}
	if pe != nil && pe.Kind == providers.KindConflict {
		return nil
	}
	return err
}

// PageInfo is a live site page's current state, as reported by the
// site's own REST API.
type PageInfo struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

type createPageResponse struct {
	ID string `json:"id"`
}

// CreatePage creates a new page with the given title, HTML content, and
// status ("draft" or "publish"), returning the host's assigned page id.
func (c *Client) CreatePage(ctx context.Context, siteURL, title, content, slug, status string) (string, error) {
	var resp createPageResponse
	body := map[string]string{"title": title, "content": content, "status": status, "action": "create"}
	if slug != "" {
		body["slug"] = slug
	}
	if err := c.siteRequest(ctx, siteURL, "/pages", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdatePage applies updates (any of title, content, slug, status) to
// the page identified by pageID.
func (c *Client) UpdatePage(ctx context.Context, siteURL, pageID string, updates map[string]string) error {
	body := map[string]string{"id": pageID, "action": "update"}
	for k, v := range updates {
		body[k] = v
	}
	return c.siteRequest(ctx, siteURL, "/pages", body, nil)
}

// SetFrontPageByID points the site's front page at pageID.
func (c *Client) SetFrontPageByID(ctx context.Context, siteURL, pageID string) error {
	return c.siteRequest(ctx, siteURL, "/settings/front-page", map[string]string{"show_on_front": "page", "page_on_front": pageID}, nil)
}

// ListPages fetches the site's current page list.
func (c *Client) ListPages(ctx context.Context, siteURL string) ([]PageInfo, error) {
	var resp struct {
		Pages []PageInfo `json:"pages"`
	}
	err := providers.Retry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL+"/wp-json/sitepilot/v1/pages", nil)
		if err != nil {
			return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Cause: err}
		}
		return c.do(req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Pages, nil
}
