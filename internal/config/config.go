// Package config loads the control plane's runtime configuration from
// the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the fully resolved set of runtime settings.
type Config struct {
	Port    int
	Version string

	Database   DatabaseConfig
	Telemetry  TelemetryConfig
	Registrar  RegistrarConfig
	Cloudflare CloudflareConfig
	Host       HostConfig
	Scraper    ScraperConfig
	AIVendors  AIVendorConfig
	Proxy      ProxyConfig

	EnableAIProxy    bool
	EnablePluginAPI  bool
	EnableUserAuth   bool
	EnableVoiceFlow  bool
}

// DatabaseConfig configures the Postgres-backed store. When URL is
// empty the server falls back to the in-memory store.
type DatabaseConfig struct {
	URL string
}

// TelemetryConfig configures the OpenTelemetry tracer.
type TelemetryConfig struct {
	ServiceName string
	OTLPEndpoint string
	Enabled     bool
}

// RegistrarConfig configures the Namecheap domain-registrar client.
type RegistrarConfig struct {
	APIKey   string
	Username string
	ClientIP string
	Sandbox  bool
}

// CloudflareConfig configures the Cloudflare DNS/edge-security client.
type CloudflareConfig struct {
	APIKey    string
	Email     string
	AccountID string
}

// HostConfig configures the WordPress-style site host client.
type HostConfig struct {
	APIKey string
}

// ScraperConfig configures the Firecrawl client.
type ScraperConfig struct {
	APIKey string
}

// AIVendorConfig holds the per-vendor AI credentials.
type AIVendorConfig struct {
	OpenAIKey    string
	GeminiKey    string
	AnthropicKey string
}

// ProxyConfig configures the AI proxy gateway's admin surface.
type ProxyConfig struct {
	AdminSecret string
}

// Load reads Config from the process environment, falling back to
// sensible defaults for anything unset.
func Load() Config {
	return Config{
		Port:    envInt("PORT", 8080),
		Version: envStr("VERSION", "dev"),

		Database: DatabaseConfig{
			URL: envStr("DATABASE_URL", ""),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  envStr("OTEL_SERVICE_NAME", "control-plane"),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Enabled:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "") != "",
		},
		Registrar: RegistrarConfig{
			APIKey:   envStr("NAMECHEAP_API_KEY", ""),
			Username: envStr("NAMECHEAP_USERNAME", ""),
			ClientIP: envStr("NAMECHEAP_CLIENT_IP", ""),
			Sandbox:  envBool("NAMECHEAP_SANDBOX", false),
		},
		Cloudflare: CloudflareConfig{
			APIKey:    envStr("CLOUDFLARE_API_KEY", ""),
			Email:     envStr("CLOUDFLARE_EMAIL", ""),
			AccountID: envStr("CLOUDFLARE_ACCOUNT_ID", ""),
		},
		Host: HostConfig{
			APIKey: envStr("INSTA_WP_API_KEY", ""),
		},
		Scraper: ScraperConfig{
			APIKey: envStr("FIRECRAWL_API_KEY", ""),
		},
		AIVendors: AIVendorConfig{
			OpenAIKey:    envStr("OPENAI_API_KEY", ""),
			GeminiKey:    envStr("GEMINI_API_KEY", ""),
			AnthropicKey: envStr("ANTHROPIC_API_KEY", ""),
		},
		Proxy: ProxyConfig{
			AdminSecret: envStr("PROXY_ADMIN_SECRET", ""),
		},

		EnableAIProxy:   envBool("ENABLE_AI_PROXY", true),
		EnablePluginAPI: envBool("ENABLE_PLUGIN_API", true),
		EnableUserAuth:  envBool("ENABLE_USER_AUTH", false),
		EnableVoiceFlow: envBool("ENABLE_VOICE_FLOW", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}
