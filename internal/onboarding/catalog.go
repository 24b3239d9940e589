package onboarding

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"golang.org/x/sync/singleflight"
)

// Template is a starting point for a new site's deployment/content
// context, tied to an industry.
type Template struct {
	Slug       string
	Industries []string
	Confidence float64
	Pages      []string
}

const catalogTTL = time.Hour

// Catalog caches the set of available templates, refreshing at most
// once per TTL and collapsing concurrent refreshes into a single
// fetch.
type Catalog struct {
	mu        sync.RWMutex
	templates []Template
	fetchedAt time.Time

	fetch func(ctx context.Context) ([]Template, error)
	group singleflight.Group
}

// NewCatalog builds a Catalog that refreshes via fetch.
func NewCatalog(fetch func(ctx context.Context) ([]Template, error)) *Catalog {
	return &Catalog{fetch: fetch}
}

// fallbackTemplate is the 1-entry hardcoded catalog returned when the
// template source can't be reached and no cached value exists yet.
var fallbackTemplate = Template{
	Slug: "flexify", Industries: []string{"general"}, Confidence: 0.1,
	Pages: []string{"home", "about", "services", "contact", "blog"},
}

func (c *Catalog) list(ctx context.Context) []Template {
	c.mu.RLock()
	fresh := time.Since(c.fetchedAt) < catalogTTL && len(c.templates) > 0
	templates := c.templates
	c.mu.RUnlock()

	if fresh {
		return templates
	}

	v, _, _ := c.group.Do("refresh", func() (interface{}, error) {
		fetched, err := c.fetch(ctx)
		if err != nil || len(fetched) == 0 {
			return nil, err
		}
		c.mu.Lock()
		c.templates = fetched
		c.fetchedAt = time.Now()
		c.mu.Unlock()
		return fetched, nil
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	if v != nil {
		return v.([]Template)
	}
	if len(c.templates) > 0 {
		return c.templates
	}
	return []Template{fallbackTemplate}
}

// Match picks the best template for brief by keyword matching,
// preferring the highest-confidence candidate and breaking ties in
// favor of a template whose industries list contains the brief's
// stated industry as a case-insensitive substring (or vice versa).
func (c *Catalog) Match(ctx context.Context, brief Brief) Template {
	templates := c.list(ctx)

	best := templates[0]
	for _, t := range templates[1:] {
		if scoreBreaksTie(t, best, brief) {
			best = t
		}
	}
	return best
}

// bySlug returns the catalog entry named slug, if present.
func (c *Catalog) bySlug(ctx context.Context, slug string) (Template, bool) {
	for _, t := range c.list(ctx) {
		if t.Slug == slug {
			return t, true
		}
	}
	return Template{}, false
}

// scoreBreaksTie reports whether candidate should replace current as
// the best match for brief.
func scoreBreaksTie(candidate, current Template, brief Brief) bool {
	if candidate.Confidence > current.Confidence {
		return true
	}
	if candidate.Confidence < current.Confidence {
		return false
	}

	industry := strings.ToLower(brief.Industry)
	if industry == "" {
		return false
	}
	for _, ci := range candidate.Industries {
		env := map[string]interface{}{"industry": industry, "candidateIndustry": strings.ToLower(ci)}
		program, err := expr.Compile(`industry contains candidateIndustry or candidateIndustry contains industry`, expr.Env(env))
		if err != nil {
			continue
		}
		out, err := expr.Run(program, env)
		if err != nil {
			continue
		}
		if matched, _ := out.(bool); matched {
			return true
		}
	}
	return false
}

// staticCatalog is the built-in seed of starter templates, used until
// an operator wires a richer catalog source.
var staticCatalog = []Template{
	{Slug: "bakery", Industries: []string{"food and beverage", "bakery"}, Confidence: 0.6, Pages: []string{"home", "menu", "about", "contact"}},
	{Slug: "law-firm", Industries: []string{"legal services", "law firm"}, Confidence: 0.6, Pages: []string{"home", "practice-areas", "attorneys", "contact"}},
	{Slug: "agency", Industries: []string{"professional services", "marketing agency"}, Confidence: 0.5, Pages: []string{"home", "services", "portfolio", "contact"}},
	fallbackTemplate,
}

// FetchStaticCatalog returns the built-in starter catalog. It never
// fails, so it's a safe default Catalog fetch function for deployments
// that haven't wired a dynamic template source.
func FetchStaticCatalog(ctx context.Context) ([]Template, error) {
	return staticCatalog, nil
}
