// Package dns implements the Cloudflare DNS and edge-security client
// used to wire a freshly registered domain up to a provisioned site.
package dns

import (
	"context"
	"fmt"

	cloudflare "github.com/cloudflare/cloudflare-go"

	"github.com/sitepilot/control-plane/internal/config"
	"github.com/sitepilot/control-plane/internal/providers"
)

// Client wraps cloudflare-go with this domain's error shape and
// idempotent upsert semantics.
type Client struct {
	api       *cloudflare.API
	accountID string
}

// New builds a Client from cfg.
func New(cfg config.CloudflareConfig) (*Client, error) {
	api, err := cloudflare.New(cfg.APIKey, cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("dns: building cloudflare client: %w", err)
	}
	return &Client{api: api, accountID: cfg.AccountID}, nil
}

// GetOrCreateZone returns the zone ID for domain, creating it on
// Cloudflare if it doesn't already exist there. Safe to call
// repeatedly for the same domain.
func (c *Client) GetOrCreateZone(ctx context.Context, domain string) (zoneID string, nameservers []string, err error) {
	zones, err := c.api.ListZonesContext(ctx, cloudflare.WithZoneFilters(domain, c.accountID, ""))
	if err != nil {
		return "", nil, &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}
	for _, z := range zones.Result {
		if z.Name == domain {
			return z.ID, z.NameServers, nil
		}
	}

	zone, err := c.api.CreateZone(ctx, domain, false, cloudflare.Account{ID: c.accountID}, "full")
	if err != nil {
		return "", nil, &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}
	return zone.ID, zone.NameServers, nil
}

// SetARecord upserts a single A record pointing name at ip within
// zoneID. If a record for name already exists it is updated in place
// rather than duplicated.
func (c *Client) SetARecord(ctx context.Context, zoneID, name, ip string) error {
	rc := cloudflare.ZoneIdentifier(zoneID)

	existing, _, err := c.api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{Type: "A", Name: name})
	if err != nil {
		return &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}

	if len(existing) > 0 {
		_, err := c.api.UpdateDNSRecord(ctx, rc, cloudflare.UpdateDNSRecordParams{
			ID: existing[0].ID, Type: "A", Name: name, Content: ip, TTL: 1, Proxied: cloudflare.BoolPtr(true),
		})
		if err != nil {
			return &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: err.Error(), Retryable: true, Cause: err}
		}
		return nil
	}

	_, err = c.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
		Type: "A", Name: name, Content: ip, TTL: 1, Proxied: cloudflare.BoolPtr(true),
	})
	if err != nil {
		return &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}
	return nil
}

// ConfigureSecurity turns on the baseline edge-security posture for
// zoneID: always-use-https and a minimum TLS version.
func (c *Client) ConfigureSecurity(ctx context.Context, zoneID string) error {
	rc := cloudflare.ZoneIdentifier(zoneID)

	if _, err := c.api.UpdateZoneSetting(ctx, rc, "always_use_https", "on"); err != nil {
		return &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}
	if _, err := c.api.UpdateZoneSetting(ctx, rc, "min_tls_version", "1.2"); err != nil {
		return &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: err.Error(), Retryable: true, Cause: err}
	}
	return nil
}
