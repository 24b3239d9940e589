// Package contracts defines the narrow interfaces other packages depend
// on for the control plane's core services, so composition roots can
// swap implementations without pulling in concrete types.
package contracts

import (
	"context"

	"github.com/sitepilot/control-plane/internal/applicator"
	"github.com/sitepilot/control-plane/internal/onboarding"
	"github.com/sitepilot/control-plane/internal/progress"
	"github.com/sitepilot/control-plane/internal/provisioning"
	"github.com/sitepilot/control-plane/internal/proxy"
	"github.com/sitepilot/control-plane/pkg/models"
)

// ProvisioningEngine drives Domain + Site workflow runs.
type ProvisioningEngine interface {
	Start(ctx context.Context, req provisioning.Request) (runID string, sink *progress.Channel)
	GetRun(runID string) (*models.WorkflowRun, bool)
	Sink(runID string) (*progress.Channel, bool)
}

// OnboardingWorkflow turns a source site or interview transcript into a
// deployment and content context.
type OnboardingWorkflow interface {
	RunCopy(ctx context.Context, sourceURL string) (*onboarding.Result, error)
	RunVoice(ctx context.Context, siteTitle string, answers []onboarding.InterviewAnswer) (*onboarding.Result, error)
}

// EditSessionExecutor runs chat-driven edit sessions against a live
// site.
type EditSessionExecutor interface {
	CreateSession(ctx context.Context, tenantID, siteID, siteURL string) (*models.EditSession, error)
	SendMessage(ctx context.Context, sessionID, siteURL, userMessage string) (string, []models.ActionResult, error)
}

// DeploymentApplicator pushes a deployment context onto a live site,
// accumulating per-sub-task outcomes rather than aborting on the first
// failure.
type DeploymentApplicator interface {
	Apply(ctx context.Context, siteURL string, dc models.DeploymentContext, cc models.ContentContext) applicator.Result
}

// ProxyGateway authenticates and routes AI proxy chat requests on
// behalf of a tenant's ProxySite.
type ProxyGateway interface {
	Authenticate(ctx context.Context, bearerToken string) (*models.ProxySite, error)
	Chat(ctx context.Context, site *models.ProxySite, model string, messages []models.ChatMessage, maxTokens int, temperature float64) (*proxy.ChatResponse, error)
}
