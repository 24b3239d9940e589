// Package server composes the control plane: configuration, the
// persistence layer, every provider client, the workflow engines, and
// the HTTP router, into one ready-to-serve Server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sitepilot/control-plane/internal/api"
	"github.com/sitepilot/control-plane/internal/api/handlers"
	"github.com/sitepilot/control-plane/internal/applicator"
	"github.com/sitepilot/control-plane/internal/config"
	"github.com/sitepilot/control-plane/internal/editor"
	"github.com/sitepilot/control-plane/internal/onboarding"
	"github.com/sitepilot/control-plane/internal/providers/aivendor"
	"github.com/sitepilot/control-plane/internal/providers/dns"
	"github.com/sitepilot/control-plane/internal/providers/host"
	"github.com/sitepilot/control-plane/internal/providers/registrar"
	"github.com/sitepilot/control-plane/internal/providers/scraper"
	"github.com/sitepilot/control-plane/internal/provisioning"
	"github.com/sitepilot/control-plane/internal/proxy"
	"github.com/sitepilot/control-plane/internal/store"
	"github.com/sitepilot/control-plane/internal/telemetry"
)

// Server holds the fully initialized control plane.
type Server struct {
	Handler http.Handler
	Store   store.Store
	Port    int

	retentionCancel context.CancelFunc
	ShutdownFunc    func(context.Context) error
}

// New builds a Server from environment configuration.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("server: initializing telemetry: %w", err)
	}

	st, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("server: initializing store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("server: running migrations: %w", err)
	}

	registrarClient := registrar.New(cfg.Registrar)
	dnsClient, err := dns.New(cfg.Cloudflare)
	if err != nil {
		return nil, fmt.Errorf("server: initializing dns client: %w", err)
	}
	hostClient := host.New(cfg.Host)
	scraperClient := scraper.New(cfg.Scraper)

	drivers := map[string]aivendor.Client{}
	if cfg.AIVendors.OpenAIKey != "" {
		drivers["openai"] = aivendor.NewOpenAI(cfg.AIVendors.OpenAIKey)
	}
	if cfg.AIVendors.AnthropicKey != "" {
		drivers["claude"] = aivendor.NewAnthropic(cfg.AIVendors.AnthropicKey)
	}
	if cfg.AIVendors.GeminiKey != "" {
		drivers["gemini"] = aivendor.NewGemini(cfg.AIVendors.GeminiKey)
	}

	var contentModel aivendor.Client
	if d, ok := drivers["openai"]; ok {
		contentModel = d
	}
	app := applicator.New(hostClient, contentModel)
	engine := provisioning.New(registrarClient, dnsClient, provisioningHostAdapter{hostClient}, app)

	catalog := onboarding.NewCatalog(onboarding.FetchStaticCatalog)
	onboardingWorkflow := onboarding.New(scraperClient, catalog, drivers["openai"], drivers["claude"])

	gateway := proxy.New(st, drivers)

	editorExecutor := editor.New(st, siteActionsAdapter{hostClient}, contentModel)

	retentionJanitor := store.NewRetentionJanitor(st, 90*24*time.Hour, 24*time.Hour)
	retentionCtx, cancel := context.WithCancel(context.Background())
	go retentionJanitor.Run(retentionCtx)

	h := &api.Handlers{
		Provisioning: handlers.NewProvisioningHandlers(engine),
		Onboarding:   handlers.NewOnboardingHandlers(onboardingWorkflow),
		Proxy:        handlers.NewProxyHandlers(gateway, st),
		Editor:       handlers.NewEditorHandlers(editorExecutor),
	}

	router := api.NewRouter(&cfg, h, gateway)

	return &Server{
		Handler:         router,
		Store:           st,
		Port:            cfg.Port,
		retentionCancel: cancel,
		ShutdownFunc: func(shutdownCtx context.Context) error {
			cancel()
			return shutdown(shutdownCtx)
		},
	}, nil
}

func newStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Database.URL == "" {
		log.Info().Msg("no DATABASE_URL set, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(ctx, cfg.Database.URL)
}

// provisioningHostAdapter narrows host.Client to provisioning.Host,
// converting its site shape to the engine's own.
type provisioningHostAdapter struct {
	host *host.Client
}

func (a provisioningHostAdapter) CreateSite(ctx context.Context, siteName string) (*provisioning.HostSite, error) {
	site, err := a.host.CreateSite(ctx, siteName)
	if err != nil {
		return nil, err
	}
	return &provisioning.HostSite{ID: site.ID, URL: site.URL, IPAddress: site.IPAddress}, nil
}

func (a provisioningHostAdapter) WaitUntilReady(ctx context.Context, siteID string) (*provisioning.HostSite, error) {
	site, err := a.host.WaitUntilReady(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return &provisioning.HostSite{ID: site.ID, URL: site.URL, IPAddress: site.IPAddress}, nil
}

func (a provisioningHostAdapter) MapDomain(ctx context.Context, siteID, domain string) error {
	return a.host.MapDomain(ctx, siteID, domain)
}

// siteActionsAdapter narrows host.Client to editor.SiteActions,
// converting its page listing shape to the editor's own.
type siteActionsAdapter struct {
	host *host.Client
}

func (a siteActionsAdapter) UpdatePage(ctx context.Context, siteURL, pageID string, updates map[string]string) error {
	return a.host.UpdatePage(ctx, siteURL, pageID, updates)
}

func (a siteActionsAdapter) UpdateSettings(ctx context.Context, siteURL string, settings map[string]string) error {
	return a.host.UpdateSettings(ctx, siteURL, settings)
}

func (a siteActionsAdapter) CreatePage(ctx context.Context, siteURL, title, content, slug, status string) (string, error) {
	return a.host.CreatePage(ctx, siteURL, title, content, slug, status)
}

func (a siteActionsAdapter) ListPages(ctx context.Context, siteURL string) ([]editor.PageSummary, error) {
	pages, err := a.host.ListPages(ctx, siteURL)
	if err != nil {
		return nil, err
	}
	out := make([]editor.PageSummary, len(pages))
	for i, p := range pages {
		out[i] = editor.PageSummary{ID: p.ID, Slug: p.Slug, Title: p.Title, Excerpt: p.Excerpt}
	}
	return out, nil
}
