// Package registrar implements a Namecheap domain-registrar client.
//
// Namecheap's API is XML-over-GET with no official Go SDK, so this
// client is built directly on net/http and encoding/xml.
package registrar

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sitepilot/control-plane/internal/config"
	"github.com/sitepilot/control-plane/internal/providers"
)

const (
	prodBaseURL    = "https://api.namecheap.com/xml.response"
	sandboxBaseURL = "https://api.sandbox.namecheap.com/xml.response"
)

// Client checks and registers domains through the Namecheap API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	username   string
	clientIP   string
}

// New builds a Client from cfg.
func New(cfg config.RegistrarConfig) *Client {
	baseURL := prodBaseURL
	if cfg.Sandbox {
		baseURL = sandboxBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		username:   cfg.Username,
		clientIP:   cfg.ClientIP,
	}
}

type apiResponse struct {
	XMLName xml.Name `xml:"ApiResponse"`
	Status  string   `xml:"Status,attr"`
	Errors  struct {
		Error []struct {
			Number string `xml:"Number,attr"`
			Text   string `xml:",chardata"`
		} `xml:"Error"`
	} `xml:"Errors"`
	CommandResponse struct {
		DomainCheckResult []struct {
			Domain    string `xml:"Domain,attr"`
			Available bool   `xml:"Available,attr"`
		} `xml:"DomainCheckResult"`
		DomainCreateResult struct {
			Domain  string `xml:"Domain,attr"`
			Registered bool `xml:"Registered,attr"`
		} `xml:"DomainCreateResult"`
	} `xml:"CommandResponse"`
}

func (c *Client) do(ctx context.Context, command string, extra url.Values) (*apiResponse, error) {
	q := url.Values{}
	q.Set("ApiUser", c.username)
	q.Set("ApiKey", c.apiKey)
	q.Set("UserName", c.username)
	q.Set("ClientIp", c.clientIP)
	q.Set("Command", command)
	for k, v := range extra {
		q[k] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Retryable: false, VendorMessage: err.Error(), Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindNetwork, Retryable: true, VendorMessage: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &providers.Error{Kind: providers.KindUpstreamInvalid, HTTPStatus: resp.StatusCode, VendorMessage: "malformed registrar response", Cause: err}
	}

	if parsed.Status == "ERROR" {
		msg := "registrar error"
		if len(parsed.Errors.Error) > 0 {
			msg = parsed.Errors.Error[0].Text
		}
		kind := providers.KindUpstreamFailure
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = providers.KindAuth
		}
		return nil, &providers.Error{Kind: kind, HTTPStatus: resp.StatusCode, VendorMessage: msg, Retryable: kind == providers.KindUpstreamFailure}
	}

	return &parsed, nil
}

// CheckAvailable reports whether domain can be registered.
func (c *Client) CheckAvailable(ctx context.Context, domain string) (bool, error) {
	var available bool
	err := providers.Retry(ctx, func(ctx context.Context) error {
		resp, err := c.do(ctx, "namecheap.domains.check", url.Values{"DomainList": {domain}})
		if err != nil {
			return err
		}
		for _, r := range resp.CommandResponse.DomainCheckResult {
			if r.Domain == domain {
				available = r.Available
				return nil
			}
		}
		return &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: fmt.Sprintf("domain %s not present in check response", domain)}
	})
	return available, err
}

// Register purchases domain for years (defaulting to 1 if years <= 0).
func (c *Client) Register(ctx context.Context, domain string, years int, registrant Registrant) error {
	if years <= 0 {
		years = 1
	}
	v := registrant.toValues()
	v.Set("DomainName", domain)
	v.Set("Years", fmt.Sprintf("%d", years))

	return providers.Retry(ctx, func(ctx context.Context) error {
		resp, err := c.do(ctx, "namecheap.domains.create", v)
		if err != nil {
			return err
		}
		if !resp.CommandResponse.DomainCreateResult.Registered {
			return &providers.Error{Kind: providers.KindUpstreamFailure, VendorMessage: "registrar did not confirm registration", Retryable: true}
		}
		return nil
	})
}

// SetCustomNameservers points domain at nameservers, replacing whatever
// the registrar assigned at registration time.
func (c *Client) SetCustomNameservers(ctx context.Context, domain string, nameservers []string) error {
	parts := splitDomain(domain)
	if len(parts) != 2 {
		return &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: fmt.Sprintf("domain %s is not a valid SLD.TLD", domain)}
	}
	v := url.Values{"SLD": {parts[0]}, "TLD": {parts[1]}, "Nameservers": {joinNameservers(nameservers)}}

	return providers.Retry(ctx, func(ctx context.Context) error {
		_, err := c.do(ctx, "namecheap.domains.dns.setCustom", v)
		return err
	})
}

func splitDomain(domain string) []string {
	for i := 0; i < len(domain); i++ {
		if domain[i] == '.' {
			return []string{domain[:i], domain[i+1:]}
		}
	}
	return []string{domain}
}

func joinNameservers(nameservers []string) string {
	out := ""
	for i, ns := range nameservers {
		if i > 0 {
			out += ","
		}
		out += ns
	}
	return out
}

// Registrant is the contact record Namecheap requires for registration.
type Registrant struct {
	FirstName, LastName string
	Address1, City, StateProvince, PostalCode, Country string
	Phone, EmailAddress string
}

func (r Registrant) toValues() url.Values {
	v := url.Values{}
	for _, role := range []string{"Registrant", "Tech", "Admin", "AuxBilling"} {
		v.Set(role+"FirstName", r.FirstName)
		v.Set(role+"LastName", r.LastName)
		v.Set(role+"Address1", r.Address1)
		v.Set(role+"City", r.City)
		v.Set(role+"StateProvince", r.StateProvince)
		v.Set(role+"PostalCode", r.PostalCode)
		v.Set(role+"Country", r.Country)
		v.Set(role+"Phone", r.Phone)
		v.Set(role+"EmailAddress", r.EmailAddress)
	}
	return v
}
