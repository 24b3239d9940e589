// Package models holds the data types shared across the control plane:
// workflow state, provider contexts, and the persisted proxy/editor
// entities.
package models

import "time"

// WorkflowKind distinguishes the two provisioning pipelines.
type WorkflowKind string

const (
	WorkflowDomainSite WorkflowKind = "domain_site"
	WorkflowOnboarding WorkflowKind = "onboarding"
)

// WorkflowStatus is the lifecycle state of a WorkflowRun.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "complete"
	WorkflowFailed    WorkflowStatus = "error"
	WorkflowCanceled  WorkflowStatus = "canceled"
)

// StepStatus is the lifecycle state of a single StepRecord.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepRunning    StepStatus = "running"
	StepSucceeded  StepStatus = "succeeded"
	StepSoftFailed StepStatus = "soft_failed"
	StepFailed     StepStatus = "failed"
)

// WorkflowRun is the transient, in-memory record of one pipeline
// execution. It is never persisted; its final outcome is surfaced to
// the caller via the progress channel and the synchronous result, not
// re-read from storage.
type WorkflowRun struct {
	ID        string
	Kind      WorkflowKind
	TenantID  string
	Status    WorkflowStatus
	StartedAt time.Time
	EndedAt   time.Time
	Steps     []*StepRecord
	Err       error
	Result    *ProvisioningResult
}

// StepRecord tracks one named step of a WorkflowRun.
type StepRecord struct {
	Name      string
	Status    StepStatus
	Attempt   int
	StartedAt time.Time
	EndedAt   time.Time
	Detail    string
	Err       error
}

// ProgressEvent is one typed update emitted on a workflow's progress
// channel.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Step      string    `json:"step"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NameserverInstructions surfaces the zone's target nameservers to the
// operator when the workflow did not itself register the domain, so
// the domain's existing registrar can be repointed manually.
type NameserverInstructions struct {
	Nameservers []string `json:"nameservers"`
}

// FinalURLs are the live URLs a completed Domain + Site run produced.
type FinalURLs struct {
	Site  string `json:"site"`
	Admin string `json:"admin,omitempty"`
}

// ProvisioningResult is the terminal, non-step payload of a Domain +
// Site workflow run.
type ProvisioningResult struct {
	NameserverInstructions *NameserverInstructions `json:"nameserver_instructions,omitempty"`
	FinalURLs              *FinalURLs              `json:"final_urls,omitempty"`
}

// Template identifies the onboarding template a DeploymentContext was
// built from.
type Template struct {
	Slug      string `json:"slug"`
	Skin      string `json:"skin,omitempty"`
	Variation string `json:"variation,omitempty"`
}

// Plugin is one plugin to install (and optionally configure) onto a
// provisioned site.
type Plugin struct {
	Slug     string            `json:"slug"`
	Activate bool              `json:"activate"`
	Config   map[string]string `json:"config,omitempty"`
}

// DemoContent describes placeholder content import behavior for a
// freshly provisioned site.
type DemoContent struct {
	Import       bool              `json:"import"`
	Pages        []string          `json:"pages,omitempty"`
	ContentSlots map[string]string `json:"content_slots,omitempty"`
}

// Branding holds the visual identity pushed onto a site by the
// Deployment Applicator.
type Branding struct {
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
	FaviconURL     string `json:"favicon_url,omitempty"`
}

// DeploymentContext describes the branding and structural changes to
// apply to a freshly created site. Template.Slug is required; any
// color present on Branding must match ^#[0-9A-Fa-f]{6}$.
type DeploymentContext struct {
	Template    Template    `json:"template"`
	Plugins     []Plugin    `json:"plugins,omitempty"`
	DemoContent DemoContent `json:"demo_content,omitempty"`
	Branding    Branding    `json:"branding,omitempty"`
	Features    []string    `json:"features,omitempty"`
}

// ContactInfo is a business's published contact channels.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Business describes the tenant's business as surfaced to AI content
// generation. Name is required.
type Business struct {
	Name                string      `json:"name"`
	Tagline             string      `json:"tagline,omitempty"`
	Industry            string      `json:"industry,omitempty"`
	Services            []string    `json:"services,omitempty"`
	TargetAudience      string      `json:"target_audience,omitempty"`
	UniqueSellingPoints []string    `json:"unique_selling_points,omitempty"`
	Location            string      `json:"location,omitempty"`
	ContactInfo         ContactInfo `json:"contact_info,omitempty"`
}

// Language describes the content's primary and additional locales.
type Language struct {
	Primary    string   `json:"primary"`
	Additional []string `json:"additional,omitempty"`
}

// ContentPage is one page's content brief within a ContentContext.
type ContentPage struct {
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Sections []string `json:"sections,omitempty"`
}

// SEO holds the generated search-metadata for a site.
type SEO struct {
	MetaTitle       string   `json:"meta_title,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// SourceAnalysis records what the COPY onboarding variant extracted
// from a scraped source site.
type SourceAnalysis struct {
	SourceURL      string   `json:"source_url"`
	ScrapedTitle   string   `json:"scraped_title,omitempty"`
	NavLinks       []string `json:"nav_links,omitempty"`
	SocialLinks    []string `json:"social_links,omitempty"`
	ExtractedColor []string `json:"extracted_colors,omitempty"`
}

// VoiceInterview records the raw question/answer pairs the VOICE
// onboarding variant built its Brief from.
type VoiceInterview struct {
	Answers map[string]string `json:"answers"`
}

// ContentContext describes what copy/content should be generated for
// each page of a site. Business.Name is required. Exactly one of
// SourceAnalysis or VoiceInterview is populated, depending on which
// onboarding variant produced it.
type ContentContext struct {
	Business       Business        `json:"business"`
	Language       Language        `json:"language"`
	Tone           string          `json:"tone,omitempty"` // professional | friendly | casual | formal
	Pages          []ContentPage   `json:"pages,omitempty"`
	SEO            SEO             `json:"seo,omitempty"`
	SourceAnalysis *SourceAnalysis `json:"source_analysis,omitempty"`
	VoiceInterview *VoiceInterview `json:"voice_interview,omitempty"`
}

// ProxySite is a tenant-provisioned site registered against the AI
// proxy gateway.
type ProxySite struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Domain      string    `json:"domain" db:"domain"`
	APIKey      string    `json:"-" db:"api_key"`
	TierName    string    `json:"tier_name" db:"tier_name"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// SubscriptionTier is a named quota/rate policy a ProxySite is pinned
// to.
type SubscriptionTier struct {
	Name              string `json:"name" db:"name"`
	MonthlyTokenQuota int64  `json:"monthly_token_quota" db:"monthly_token_quota"`
	RequestsPerMinute int    `json:"requests_per_minute" db:"requests_per_minute"`
	AllowedModels     []string `json:"allowed_models" db:"allowed_models"`
}

// ProxyRequestLog records one completed (or failed) proxied chat call.
type ProxyRequestLog struct {
	ID           string    `json:"id" db:"id"`
	ProxySiteID  string    `json:"proxy_site_id" db:"proxy_site_id"`
	Model        string    `json:"model" db:"model"`
	Vendor       string    `json:"vendor" db:"vendor"`
	PromptTokens int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens  int       `json:"total_tokens" db:"total_tokens"`
	StatusCode   int       `json:"status_code" db:"status_code"`
	Err          string    `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// EditSession is a chat-driven editing conversation scoped to one
// site.
type EditSession struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	SiteID    string    `json:"site_id" db:"site_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EditMessage is one transcript entry of an EditSession, in strict
// creation order. The first message of every session is the system
// prompt.
type EditMessage struct {
	ID        string                 `json:"id" db:"id"`
	SessionID string                 `json:"session_id" db:"session_id"`
	Role      string                 `json:"role" db:"role"` // system | user | assistant
	Content   string                 `json:"content" db:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// ActionResult is the outcome of dispatching one `:::action` block
// parsed out of an assistant reply.
type ActionResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AIResponse is the normalized shape every aivendor client returns,
// regardless of vendor wire format.
type AIResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage is a normalized usage count.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatMessage is a normalized chat turn passed into an aivendor client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Trace records one provider-client invocation for observability.
type Trace struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	Component  string    `json:"component" db:"component"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	Err        string    `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AuditEvent records an administrative action against a ProxySite.
type AuditEvent struct {
	ID        string    `json:"id" db:"id"`
	ProxySiteID string  `json:"proxy_site_id" db:"proxy_site_id"`
	Action    string    `json:"action" db:"action"`
	Detail    string    `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
