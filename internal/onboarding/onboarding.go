// Package onboarding implements the Onboarding Workflow: turning an
// existing site (COPY) or an interview transcript (VOICE) into a
// DeploymentContext and ContentContext ready for the applicator.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sitepilot/control-plane/internal/providers"
	"github.com/sitepilot/control-plane/internal/providers/aivendor"
	"github.com/sitepilot/control-plane/internal/providers/scraper"
	"github.com/sitepilot/control-plane/pkg/models"
)

// Brief is the normalized input to template matching and context
// construction, regardless of which variant produced it.
type Brief struct {
	Industry            string
	Summary             string
	Tone                string
	Services            []string
	TargetAudience      string
	UniqueSellingPoints []string
	ContactInfo         models.ContactInfo
	Team                string
	Location            string
}

var defaultPages = []string{"home", "about", "services", "contact", "blog"}

const defaultFaviconURL = "https://cdn.sitepilot.dev/defaults/favicon.ico"

var hexColorRe = regexp.MustCompile(`#[0-9A-Fa-f]{6}`)

var socialDomains = []string{"twitter.com", "x.com", "facebook.com", "instagram.com", "linkedin.com", "youtube.com", "tiktok.com"}

// Workflow runs the COPY and VOICE onboarding variants.
type Workflow struct {
	scraper     *scraper.Client
	catalog     *Catalog
	visionModel aivendor.Client // analyzes scraped site content for the COPY variant; optional
	textModel   aivendor.Client // matches a template against a Brief for the VOICE variant; optional
}

// New builds a Workflow. visionModel and textModel may be nil, in
// which case both variants fall back to keyword-only template
// matching.
func New(s *scraper.Client, catalog *Catalog, visionModel, textModel aivendor.Client) *Workflow {
	return &Workflow{scraper: s, catalog: catalog, visionModel: visionModel, textModel: textModel}
}

// Result is the output of either onboarding variant.
type Result struct {
	Deployment models.DeploymentContext
	Content    models.ContentContext
}

// RunCopy scrapes sourceURL, extracts its brand elements, analyzes it
// with a vision-capable model, and derives a deployment/content
// context from the matched template.
func (w *Workflow) RunCopy(ctx context.Context, sourceURL string) (*Result, error) {
	page, err := w.scraper.Scrape(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("onboarding: scraping source site: %w", err)
	}

	colors := extractBrandColors(page.RawHTML)
	navLinks := extractNavLinks(page.Links)
	socialLinks := extractSocialLinks(page.Links)

	brief := w.analyzeSite(ctx, page)
	template := w.matchTemplateForCopy(ctx, brief)

	dc := models.DeploymentContext{
		Template: models.Template{Slug: template.Slug},
		Branding: brandingFromColors(colors, firstNonEmpty(page.LogoURL, ""), firstNonEmpty(page.FaviconURL, defaultFaviconURL)),
	}
	cc := models.ContentContext{
		Business: models.Business{
			Name:     businessNameFromTitle(page.Title),
			Tagline:  page.Description,
			Industry: brief.Industry,
		},
		Language: models.Language{Primary: "en"},
		Tone:     firstNonEmpty(brief.Tone, "professional"),
		Pages:    pagesFromTemplate(template.Pages),
		SourceAnalysis: &models.SourceAnalysis{
			SourceURL:      sourceURL,
			ScrapedTitle:   page.Title,
			NavLinks:       navLinks,
			SocialLinks:    socialLinks,
			ExtractedColor: colors,
		},
	}

	if err := validateContexts(dc, cc); err != nil {
		return nil, err
	}
	return &Result{Deployment: dc, Content: cc}, nil
}

// analyzeSite asks the vision-capable model to characterize the
// scraped page; on a missing model or a failed/unparseable call it
// falls back to a bare heuristic built from the page's own metadata.
func (w *Workflow) analyzeSite(ctx context.Context, page *scraper.Page) Brief {
	brief := Brief{Summary: firstNonEmpty(page.Description, page.Title), Tone: "professional"}
	if w.visionModel == nil {
		return brief
	}

	prompt := fmt.Sprintf(
		"Analyze this business website and respond with a single JSON object "+
			`{"industry":"...","tone":"professional|friendly|casual|formal"}`+".\nTitle: %s\nDescription: %s\nContent excerpt: %.2000s",
		page.Title, page.Description, page.Markdown,
	)
	resp, err := w.visionModel.Complete(ctx, "gpt-4o", []models.ChatMessage{{Role: "user", Content: prompt}}, 256, 0.2)
	if err != nil {
		log.Warn().Err(err).Str("source_url", page.URL).Msg("onboarding: site analysis failed, using heuristic brief")
		return brief
	}

	var parsed struct {
		Industry string `json:"industry"`
		Tone     string `json:"tone"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Content)), &parsed); err != nil {
		log.Warn().Err(err).Msg("onboarding: site analysis response was not valid JSON, using heuristic brief")
		return brief
	}
	if parsed.Industry != "" {
		brief.Industry = parsed.Industry
	}
	if parsed.Tone != "" {
		brief.Tone = parsed.Tone
	}
	return brief
}

// matchTemplateForCopy lets the vision model score the catalog when
// available, otherwise falls back to the catalog's own keyword match.
func (w *Workflow) matchTemplateForCopy(ctx context.Context, brief Brief) Template {
	if w.visionModel == nil {
		return w.catalog.Match(ctx, brief)
	}
	return w.matchTemplateWithModel(ctx, w.visionModel, brief)
}

// InterviewAnswer is one question/answer turn of the guided voice
// interview.
type InterviewAnswer struct {
	Question string
	Answer   string
}

// RunVoice builds a Brief from a guided interview's answers and
// derives a deployment/content context from the matched template.
func (w *Workflow) RunVoice(ctx context.Context, siteTitle string, answers []InterviewAnswer) (*Result, error) {
	if siteTitle == "" {
		return nil, &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "site title is required"}
	}

	brief := briefFromAnswers(answers)
	template := w.matchTemplateForVoice(ctx, brief)

	dc := models.DeploymentContext{
		Template: models.Template{Slug: template.Slug},
		Branding: brandingFromColors(nil, "", defaultFaviconURL),
	}
	cc := models.ContentContext{
		Business: models.Business{
			Name:                siteTitle,
			Industry:            brief.Industry,
			Services:            brief.Services,
			TargetAudience:      brief.TargetAudience,
			UniqueSellingPoints: brief.UniqueSellingPoints,
			Location:            brief.Location,
			ContactInfo:         brief.ContactInfo,
		},
		Language: models.Language{Primary: "en"},
		Tone:     firstNonEmpty(brief.Tone, "professional"),
		Pages:    pagesFromTemplate(template.Pages),
		VoiceInterview: &models.VoiceInterview{
			Answers: answersToMap(answers),
		},
	}

	if err := validateContexts(dc, cc); err != nil {
		return nil, err
	}
	return &Result{Deployment: dc, Content: cc}, nil
}

// matchTemplateForVoice asks the text model to match a template
// against brief when available, otherwise falls back to keyword
// matching on industry against the catalog.
func (w *Workflow) matchTemplateForVoice(ctx context.Context, brief Brief) Template {
	if w.textModel == nil {
		return w.catalog.Match(ctx, brief)
	}
	return w.matchTemplateWithModel(ctx, w.textModel, brief)
}

// matchTemplateWithModel asks model to pick the best-fitting catalog
// slug for brief; falls back to keyword matching if the call fails or
// names a slug not in the catalog.
func (w *Workflow) matchTemplateWithModel(ctx context.Context, model aivendor.Client, brief Brief) Template {
	templates := w.catalog.list(ctx)
	slugs := make([]string, len(templates))
	for i, t := range templates {
		slugs[i] = t.Slug
	}

	prompt := fmt.Sprintf(
		"Given a business summary, pick the best-fitting template slug from this list: %s.\n"+
			`Respond with a single JSON object {"slug":"...","confidence":0.0-1.0}.`+"\n"+
			"Industry: %s\nSummary: %s",
		strings.Join(slugs, ", "), brief.Industry, brief.Summary,
	)
	resp, err := model.Complete(ctx, "gpt-4o-mini", []models.ChatMessage{{Role: "user", Content: prompt}}, 128, 0.0)
	if err != nil {
		log.Warn().Err(err).Msg("onboarding: template matching call failed, falling back to keyword match")
		return w.catalog.Match(ctx, brief)
	}

	var parsed struct {
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Content)), &parsed); err != nil {
		log.Warn().Err(err).Msg("onboarding: template matching response was not valid JSON, falling back to keyword match")
		return w.catalog.Match(ctx, brief)
	}
	if t, ok := w.catalog.bySlug(ctx, parsed.Slug); ok {
		return t
	}
	return w.catalog.Match(ctx, brief)
}

func briefFromAnswers(answers []InterviewAnswer) Brief {
	b := Brief{Tone: "professional"}
	for _, a := range answers {
		switch strings.ToLower(a.Question) {
		case "industry":
			b.Industry = a.Answer
		case "tone":
			b.Tone = a.Answer
		case "services":
			b.Services = splitList(a.Answer)
		case "target_audience", "target audience":
			b.TargetAudience = a.Answer
		case "unique_selling_points", "unique selling points", "usps":
			b.UniqueSellingPoints = splitList(a.Answer)
		case "phone":
			b.ContactInfo.Phone = a.Answer
		case "email":
			b.ContactInfo.Email = a.Answer
		case "address":
			b.ContactInfo.Address = a.Answer
		case "team":
			b.Team = a.Answer
		case "location":
			b.Location = a.Answer
		default:
			if b.Summary != "" {
				b.Summary += " "
			}
			b.Summary += a.Answer
		}
	}
	return b
}

// splitList splits a free-text answer on commas or semicolons,
// trimming whitespace and dropping empty entries.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func answersToMap(answers []InterviewAnswer) map[string]string {
	out := make(map[string]string, len(answers))
	for _, a := range answers {
		out[a.Question] = a.Answer
	}
	return out
}

// extractBrandColors pulls unique hex colors out of rawHTML, excluding
// pure white and pure black.
func extractBrandColors(rawHTML string) []string {
	if rawHTML == "" {
		return nil
	}
	seen := map[string]bool{"#ffffff": true, "#000000": true}
	var out []string
	for _, m := range hexColorRe.FindAllString(rawHTML, -1) {
		lower := strings.ToLower(m)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, m)
		if len(out) == 2 {
			break
		}
	}
	return out
}

func extractNavLinks(links []string) []string {
	if len(links) > 8 {
		return links[:8]
	}
	return links
}

func extractSocialLinks(links []string) []string {
	var out []string
	for _, l := range links {
		for _, domain := range socialDomains {
			if strings.Contains(l, domain) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

func brandingFromColors(colors []string, logoURL, faviconURL string) models.Branding {
	b := models.Branding{LogoURL: logoURL, FaviconURL: faviconURL}
	if len(colors) > 0 {
		b.PrimaryColor = colors[0]
	}
	if len(colors) > 1 {
		b.SecondaryColor = colors[1]
	}
	return b
}

// businessNameFromTitle takes the prefix of a page title before a
// separator commonly used to append a tagline ("Acme Bakery | Fresh
// bread daily" → "Acme Bakery").
func businessNameFromTitle(title string) string {
	for _, sep := range []string{" | ", " - ", " — "} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return title
}

func pagesFromTemplate(slugs []string) []models.ContentPage {
	if len(slugs) == 0 {
		slugs = defaultPages
	}
	pages := make([]models.ContentPage, len(slugs))
	for i, slug := range slugs {
		pages[i] = models.ContentPage{Slug: slug, Title: titleCaseSlug(slug)}
	}
	return pages
}

// titleCaseSlug turns a hyphenated slug into a display title
// ("practice-areas" → "Practice Areas").
func titleCaseSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// extractJSONObject returns the span of s from its first '{' to its
// last '}' (or "{}" if there is no such span), tolerating a model reply
// that wraps its JSON in prose or a markdown code fence.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "{}"
	}
	return s[start : end+1]
}

// validateContexts checks invariants that must hold before a context
// pair is handed to the applicator, aggregating every violation into
// one error instead of failing on the first.
func validateContexts(dc models.DeploymentContext, cc models.ContentContext) error {
	var errs []error
	// hexColorRe is unanchored; a 7-character string that contains a
	// match is exactly "#" plus six hex digits.
	validColor := func(c string) bool { return len(c) == 7 && hexColorRe.MatchString(c) }
	if dc.Template.Slug == "" {
		errs = append(errs, errors.New("deployment context: template slug is required"))
	}
	if dc.Branding.PrimaryColor != "" && !validColor(dc.Branding.PrimaryColor) {
		errs = append(errs, fmt.Errorf("deployment context: primary color %q is not a valid hex color", dc.Branding.PrimaryColor))
	}
	if dc.Branding.SecondaryColor != "" && !validColor(dc.Branding.SecondaryColor) {
		errs = append(errs, fmt.Errorf("deployment context: secondary color %q is not a valid hex color", dc.Branding.SecondaryColor))
	}
	if cc.Business.Name == "" {
		errs = append(errs, errors.New("content context: business name is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("onboarding: invalid context: %w", errors.Join(errs...))
}
