package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sitepilot/control-plane/internal/api/handlers"
	"github.com/sitepilot/control-plane/internal/api/middleware"
	"github.com/sitepilot/control-plane/internal/config"
	"github.com/sitepilot/control-plane/internal/proxy"
)

// Handlers bundles every handler group the router mounts.
type Handlers struct {
	Provisioning *handlers.ProvisioningHandlers
	Onboarding   *handlers.OnboardingHandlers
	Proxy        *handlers.ProxyHandlers
	Editor       *handlers.EditorHandlers
}

// NewRouter builds the control plane's HTTP router.
func NewRouter(cfg *config.Config, h *Handlers, gw *proxy.Gateway) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)

	corsOrigins := parseCORSOrigins()
	isWildcard := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !isWildcard, // wildcard origins never carry credentials
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.EnablePluginAPI {
			r.Route("/provisioning", func(r chi.Router) {
				r.Post("/domain-site", h.Provisioning.StartDomainSiteWorkflow)
				r.Route("/runs/{runID}", func(r chi.Router) {
					r.Get("/", h.Provisioning.GetRun)
					r.Get("/events", h.Provisioning.StreamProgress)
				})
			})

			r.Route("/onboarding", func(r chi.Router) {
				r.Post("/copy", h.Onboarding.StartCopy)
				r.Post("/voice", h.Onboarding.StartVoice)
			})

			r.Route("/editor", func(r chi.Router) {
				r.Post("/sessions", h.Editor.CreateSession)
				r.Post("/sessions/{sessionID}/messages", h.Editor.SendMessage)
			})
		}

		if cfg.EnableAIProxy {
			r.Route("/proxy/admin", func(r chi.Router) {
				r.Use(middleware.AdminAuth(cfg.Proxy.AdminSecret))
				r.Post("/sites", h.Proxy.RegisterSite)
				r.Post("/sites/{siteID}/revoke", h.Proxy.RevokeSite)
				r.Post("/sites/{siteID}/tier", h.Proxy.UpdateTier)
			})
		}
	})

	if cfg.EnableAIProxy {
		r.Route("/v1", func(r chi.Router) {
			r.Use(middleware.ProxyAuth(gw))
			r.Post("/chat/completions", h.Proxy.ChatCompletions)
			r.Get("/usage", h.Proxy.Usage)
			r.Get("/models", h.Proxy.Models)
		})
	}

	return r
}

// parseCORSOrigins reads allowed CORS origins from the environment.
// Default: wildcard (open access, no credentials).
func parseCORSOrigins() []string {
	originsEnv := os.Getenv("SITEPILOT_CORS_ORIGINS")
	if originsEnv == "" {
		return []string{"*"}
	}

	var origins []string
	for _, o := range strings.Split(originsEnv, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "sitepilot-control-plane",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "sitepilot-control-plane",
		})
	}
}
