// Package scraper extracts page content from an existing site, either
// through the Firecrawl API or, when no Firecrawl key is configured, a
// native HTTP+goquery fallback.
package scraper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitepilot/control-plane/internal/config"
	"github.com/sitepilot/control-plane/internal/providers"
)

// Page is the extracted content of a single URL.
type Page struct {
	URL         string
	Title       string
	Description string
	Markdown    string
	Links       []string
	FaviconURL  string
	LogoURL     string
	RawHTML     string
}

// Client scrapes pages, preferring Firecrawl and falling back to a
// native parse when no API key is configured.
type Client struct {
	httpClient *http.Client
	apiKey     string
}

// New builds a Client from cfg.
func New(cfg config.ScraperConfig) *Client {
	return &Client{httpClient: &http.Client{Timeout: 30 * time.Second}, apiKey: cfg.APIKey}
}

// Scrape extracts the content of targetURL.
func (c *Client) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	if c.apiKey != "" {
		return c.scrapeFirecrawl(ctx, targetURL)
	}
	return c.scrapeNative(ctx, targetURL)
}

type firecrawlRequest struct {
	URL      string   `json:"url"`
	Formats  []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"metadata"`
		LinksOnPage []string `json:"linksOnPage"`
	} `json:"data"`
}

func (c *Client) scrapeFirecrawl(ctx context.Context, targetURL string) (*Page, error) {
	reqBody, err := json.Marshal(firecrawlRequest{URL: targetURL, Formats: []string{"markdown", "links"}})
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: err.Error(), Cause: err}
	}

	var result *Page
	err = providers.Retry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.firecrawl.dev/v1/scrape", strings.NewReader(string(reqBody)))
		if err != nil {
			return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Cause: err}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Retryable: true, Cause: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return &providers.Error{Kind: providers.KindAuth, HTTPStatus: resp.StatusCode, VendorMessage: "firecrawl rejected credentials"}
		}
		if resp.StatusCode >= 500 {
			return &providers.Error{Kind: providers.KindUpstreamFailure, HTTPStatus: resp.StatusCode, VendorMessage: "firecrawl server error", Retryable: true}
		}
		if resp.StatusCode >= 400 {
			return &providers.Error{Kind: providers.KindUpstreamInvalid, HTTPStatus: resp.StatusCode, VendorMessage: "firecrawl rejected request"}
		}

		var fr firecrawlResponse
		if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
			return &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "malformed firecrawl response", Cause: err}
		}
		result = &Page{
			URL:         targetURL,
			Title:       fr.Data.Metadata.Title,
			Description: fr.Data.Metadata.Description,
			Markdown:    fr.Data.Markdown,
			Links:       fr.Data.LinksOnPage,
			RawHTML:     fr.Data.Markdown, // Firecrawl doesn't return raw HTML; markdown is the best brand-color signal we have
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// scrapeNative fetches targetURL directly and parses it with goquery
// when Firecrawl isn't configured.
func (c *Client) scrapeNative(ctx context.Context, targetURL string) (*Page, error) {
	var page *Page
	err := providers.Retry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Cause: err}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Retryable: true, Cause: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return &providers.Error{Kind: providers.KindUpstreamFailure, HTTPStatus: resp.StatusCode, VendorMessage: "source site returned a server error", Retryable: true}
		}
		if resp.StatusCode >= 400 {
			return &providers.Error{Kind: providers.KindUpstreamInvalid, HTTPStatus: resp.StatusCode, VendorMessage: "source site rejected request"}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &providers.Error{Kind: providers.KindNetwork, VendorMessage: err.Error(), Cause: err}
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
		if err != nil {
			return &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "malformed HTML", Cause: err}
		}

		p := &Page{URL: targetURL, RawHTML: string(body)}
		p.Title = strings.TrimSpace(doc.Find("title").First().Text())
		p.Description, _ = doc.Find(`meta[name="description"]`).First().Attr("content")
		p.FaviconURL, _ = doc.Find(`link[rel="icon"]`).First().Attr("href")
		p.LogoURL, _ = doc.Find(`img[class*="logo"], img[id*="logo"]`).First().Attr("src")

		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				p.Links = append(p.Links, href)
			}
		})

		doc.Find("script, style").Remove()
		p.Markdown = strings.TrimSpace(doc.Find("body").Text())

		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
