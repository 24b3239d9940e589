// Package applicator implements the Deployment Applicator: pushing a
// DeploymentContext's branding, pages, and plugin choices onto a live
// site through its REST surface, generating each page's copy with an
// AI vendor client against a fixed section taxonomy.
package applicator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sitepilot/control-plane/internal/providers/aivendor"
	"github.com/sitepilot/control-plane/pkg/models"
)

// SiteClient is the subset of the host's site-management REST surface
// the applicator drives. It is intentionally narrower than the full
// host client interface so the applicator can be tested against a
// fake without pulling in provisioning concerns.
type SiteClient interface {
	UpdateSettings(ctx context.Context, siteURL string, settings map[string]string) error
	UploadAsset(ctx context.Context, siteURL, kind, assetURL string) error
	InstallPlugin(ctx context.Context, siteURL, slug string, config map[string]string) error
	CreatePage(ctx context.Context, siteURL, title, content, slug, status string) (string, error)
	SetFrontPageByID(ctx context.Context, siteURL, pageID string) error
}

// sectionTaxonomy is the fixed set of page sections the applicator
// knows how to ask the AI vendor to draft. A page's ContentPage.Sections
// that don't match one of these fall back to a generic paragraph
// prompt rather than being skipped.
var sectionTaxonomy = map[string]string{
	"hero":     "a short, punchy hero headline and one-sentence subheading",
	"features": "a bulleted list of 3-5 standout features or differentiators",
	"about":    "two short paragraphs introducing the business and its story",
	"services": "a bulleted list of the services offered, one line each",
	"contact":  "a short paragraph inviting the reader to get in touch, mentioning the published contact channels",
}

// StepOutcome is the result of one sub-task of an apply run. Using a
// plain result value instead of treating every sub-task failure as
// fatal lets the applicator accumulate partial progress instead of
// aborting on the first plugin conflict or missing asset.
type StepOutcome struct {
	Name    string
	Success bool
	Detail  string
}

// Result is the accumulated outcome of applying a DeploymentContext.
type Result struct {
	Outcomes []StepOutcome
}

// AllSucceeded reports whether every sub-task in the result succeeded.
func (r Result) AllSucceeded() bool {
	for _, o := range r.Outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

// Summary renders a short human-readable line for progress events.
func (r Result) Summary() string {
	ok, total := 0, len(r.Outcomes)
	for _, o := range r.Outcomes {
		if o.Success {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d deployment steps applied", ok, total)
}

// Applicator applies DeploymentContext/ContentContext values to live
// sites.
type Applicator struct {
	site SiteClient
	ai   aivendor.Client
}

// New builds an Applicator against site, using ai to draft page copy.
// ai may be nil, in which case every page is built from the fixed
// per-section fallback blocks. The fallback is chosen by section name,
// not by page slug.
func New(site SiteClient, ai aivendor.Client) *Applicator {
	return &Applicator{site: site, ai: ai}
}

// Apply pushes dc's branding/plugin/page structure onto siteURL, using
// cc to drive AI content generation for each page. Every sub-task runs
// even if an earlier one failed; the caller decides from the returned
// Result whether the overall step counts as a soft failure.
func (a *Applicator) Apply(ctx context.Context, siteURL string, dc models.DeploymentContext, cc models.ContentContext) Result {
	var result Result

	settings := map[string]string{"title": cc.Business.Name}
	if cc.Business.Tagline != "" {
		settings["tagline"] = cc.Business.Tagline
	}
	result.Outcomes = append(result.Outcomes, a.run("update_settings", func() error {
		return a.site.UpdateSettings(ctx, siteURL, settings)
	}))

	if dc.Branding.LogoURL != "" {
		result.Outcomes = append(result.Outcomes, a.run("upload_logo", func() error {
			return a.site.UploadAsset(ctx, siteURL, "logo", dc.Branding.LogoURL)
		}))
	}
	if dc.Branding.FaviconURL != "" {
		result.Outcomes = append(result.Outcomes, a.run("upload_favicon", func() error {
			return a.site.UploadAsset(ctx, siteURL, "favicon", dc.Branding.FaviconURL)
		}))
	}

	for _, plugin := range dc.Plugins {
		plugin := plugin
		if !plugin.Activate {
			continue
		}
		result.Outcomes = append(result.Outcomes, a.run("install_plugin:"+plugin.Slug, func() error {
			return a.site.InstallPlugin(ctx, siteURL, plugin.Slug, plugin.Config)
		}))
	}

	pages := cc.Pages
	if len(pages) == 0 {
		pages = []models.ContentPage{
			{Slug: "home", Title: cc.Business.Name, Sections: []string{"hero", "features", "about"}},
			{Slug: "about", Title: "About Us", Sections: []string{"about"}},
			{Slug: "contact", Title: "Contact Us", Sections: []string{"contact"}},
		}
	}

	var homePageID string
	for _, page := range pages {
		page := page
		var pageID string
		result.Outcomes = append(result.Outcomes, a.run("generate_page:"+page.Slug, func() error {
			content := a.generateContent(ctx, cc, page)
			id, err := a.site.CreatePage(ctx, siteURL, page.Title, content, page.Slug, "publish")
			if err != nil {
				return err
			}
			pageID = id
			return nil
		}))
		if page.Slug == "home" && pageID != "" {
			homePageID = pageID
		}
	}

	if homePageID != "" {
		result.Outcomes = append(result.Outcomes, a.run("set_front_page", func() error {
			return a.site.SetFrontPageByID(ctx, siteURL, homePageID)
		}))
	}

	return result
}

// generateContent drafts HTML for page by asking the AI vendor client
// to write each of page's sections per sectionTaxonomy. A section whose
// AI call fails gets its fixed fallbackSection block; with no client
// configured, the whole page comes from fallbackTemplate. Fallbacks are
// chosen by section name (a page with no sections gets the "about"
// block); there is no per-slug template.
func (a *Applicator) generateContent(ctx context.Context, cc models.ContentContext, page models.ContentPage) string {
	if a.ai == nil {
		return fallbackTemplate(cc, page)
	}

	sections := page.Sections
	if len(sections) == 0 {
		sections = []string{"about"}
	}

	var blocks []string
	for _, section := range sections {
		brief, known := sectionTaxonomy[section]
		if !known {
			brief = "a short paragraph relevant to the \"" + section + "\" section of the page"
		}
		html, err := a.draftSection(ctx, cc, page, section, brief)
		if err != nil {
			log.Warn().Str("page", page.Slug).Str("section", section).Err(err).Msg("AI content generation failed, using fallback template")
			blocks = append(blocks, fallbackSection(cc, section))
			continue
		}
		blocks = append(blocks, html)
	}
	return strings.Join(blocks, "\n")
}

func (a *Applicator) draftSection(ctx context.Context, cc models.ContentContext, page models.ContentPage, section, brief string) (string, error) {
	prompt := fmt.Sprintf(
		"Write the \"%s\" section of the \"%s\" page for %s, a %s business. Tone: %s. Task: %s. Respond with a single HTML block using only <h2>, <p>, and <ul>/<li> tags, no markdown, no commentary.",
		section, page.Title, cc.Business.Name, orDefault(cc.Business.Industry, "local"), orDefault(cc.Tone, "professional"), brief,
	)
	messages := []models.ChatMessage{
		{Role: "system", Content: "You are a copywriter producing WordPress page content blocks."},
		{Role: "user", Content: prompt},
	}
	resp, err := a.ai.Complete(ctx, "gpt-4o-mini", messages, 512, 0.7)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// fallbackTemplate renders a fixed, non-AI page body for the whole
// page when no AI client is configured.
func fallbackTemplate(cc models.ContentContext, page models.ContentPage) string {
	sections := page.Sections
	if len(sections) == 0 {
		sections = []string{"about"}
	}
	var blocks []string
	for _, s := range sections {
		blocks = append(blocks, fallbackSection(cc, s))
	}
	return strings.Join(blocks, "\n")
}

// fallbackSection renders a fixed HTML block for one section when AI
// generation fails or is unavailable.
func fallbackSection(cc models.ContentContext, section string) string {
	name := cc.Business.Name
	switch section {
	case "hero":
		return fmt.Sprintf("<h2>Welcome to %s</h2><p>%s</p>", name, cc.Business.Tagline)
	case "features":
		items := ""
		for _, s := range cc.Business.UniqueSellingPoints {
			items += "<li>" + s + "</li>"
		}
		if items == "" {
			items = "<li>Quality service</li>"
		}
		return "<h2>Why Choose Us</h2><ul>" + items + "</ul>"
	case "about":
		return fmt.Sprintf("<h2>About %s</h2><p>%s</p>", name, cc.Business.Tagline)
	case "services":
		items := ""
		for _, s := range cc.Business.Services {
			items += "<li>" + s + "</li>"
		}
		if items == "" {
			items = "<li>Contact us for a full list of services</li>"
		}
		return "<h2>Our Services</h2><ul>" + items + "</ul>"
	case "contact":
		return fmt.Sprintf("<h2>Get in Touch</h2><p>Phone: %s &middot; Email: %s</p>", cc.Business.ContactInfo.Phone, cc.Business.ContactInfo.Email)
	default:
		return fmt.Sprintf("<h2>%s</h2><p>%s</p>", capitalize(section), name)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (a *Applicator) run(name string, fn func() error) StepOutcome {
	if err := fn(); err != nil {
		log.Warn().Str("applicator_step", name).Err(err).Msg("deployment sub-task failed")
		return StepOutcome{Name: name, Success: false, Detail: err.Error()}
	}
	return StepOutcome{Name: name, Success: true}
}
