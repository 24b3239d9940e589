// Package provisioning implements the Domain + Site workflow: the
// linear state machine that takes a bare domain name to a live,
// secured, content-populated site.
package provisioning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sitepilot/control-plane/internal/applicator"
	"github.com/sitepilot/control-plane/internal/progress"
	"github.com/sitepilot/control-plane/internal/providers"
	"github.com/sitepilot/control-plane/internal/providers/registrar"
	"github.com/sitepilot/control-plane/pkg/models"
)

// Registrar is the subset of the registrar client the engine needs.
type Registrar interface {
	CheckAvailable(ctx context.Context, domain string) (bool, error)
	Register(ctx context.Context, domain string, years int, registrant registrar.Registrant) error
	SetCustomNameservers(ctx context.Context, domain string, nameservers []string) error
}

// DNSProvider is the subset of the DNS client the engine needs.
type DNSProvider interface {
	GetOrCreateZone(ctx context.Context, domain string) (zoneID string, nameservers []string, err error)
	SetARecord(ctx context.Context, zoneID, name, ip string) error
	ConfigureSecurity(ctx context.Context, zoneID string) error
}

// Host is the subset of the site host client the engine needs.
type Host interface {
	CreateSite(ctx context.Context, siteName string) (*HostSite, error)
	WaitUntilReady(ctx context.Context, siteID string) (*HostSite, error)
	MapDomain(ctx context.Context, siteID, domain string) error
}

// HostSite is the minimal site shape the engine reads back from Host.
type HostSite struct {
	ID        string
	URL       string
	IPAddress string
}

// Request starts a Domain + Site workflow run.
type Request struct {
	TenantID          string
	Domain            string
	SiteName          string
	Registrant        registrar.Registrant
	Deployment        models.DeploymentContext
	Content           models.ContentContext
	RegisterNewDomain bool // if true, the workflow registers the domain itself and points its nameservers at the DNS zone's nameservers; otherwise the caller already owns the domain and gets nameserverInstructions back
}

// Engine drives Domain + Site workflow runs to completion.
type Engine struct {
	registrar  Registrar
	dns        DNSProvider
	host       Host
	applicator *applicator.Applicator

	mu   sync.Mutex
	runs map[string]*models.WorkflowRun
	sinks map[string]*progress.Channel
}

// New builds an Engine wired to the given provider clients.
func New(registrar Registrar, dnsProvider DNSProvider, host Host, app *applicator.Applicator) *Engine {
	return &Engine{
		registrar:  registrar,
		dns:        dnsProvider,
		host:       host,
		applicator: app,
		runs:       make(map[string]*models.WorkflowRun),
		sinks:      make(map[string]*progress.Channel),
	}
}

// Start kicks off a new run asynchronously and returns its run ID
// immediately; the pipeline executes in a background goroutine.
func (e *Engine) Start(ctx context.Context, req Request) (runID string, sink *progress.Channel) {
	runID = uuid.NewString()
	run := &models.WorkflowRun{
		ID:        runID,
		Kind:      models.WorkflowDomainSite,
		TenantID:  req.TenantID,
		Status:    models.WorkflowRunning,
		StartedAt: time.Now(),
	}
	ch := progress.NewChannel(32)

	e.mu.Lock()
	e.runs[runID] = run
	e.sinks[runID] = ch
	e.mu.Unlock()

	runCtx := context.Background() // the run outlives the originating HTTP request

	go e.execute(runCtx, run, ch, req)

	return runID, ch
}

// GetRun returns the in-memory state of a run. Runs are never
// persisted; once the process restarts, in-flight runs are gone.
func (e *Engine) GetRun(runID string) (*models.WorkflowRun, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[runID]
	return run, ok
}

// Sink returns the progress channel for runID, if the run exists.
func (e *Engine) Sink(runID string) (*progress.Channel, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.sinks[runID]
	return ch, ok
}

type stepFunc func(ctx context.Context) (detail string, softFail bool, err error)

func (e *Engine) execute(ctx context.Context, run *models.WorkflowRun, sink *progress.Channel, req Request) {
	defer sink.Close()

	var hostSite *HostSite
	var zoneID string
	var zoneNameservers []string
	result := &models.ProvisioningResult{}

	steps := []struct {
		name string
		fn   stepFunc
	}{
		{"validating_config", func(ctx context.Context) (string, bool, error) {
			if req.Domain == "" || req.SiteName == "" {
				return "", false, &providers.Error{Kind: providers.KindUpstreamInvalid, VendorMessage: "domain and site name are required"}
			}
			return "config valid", false, nil
		}},
	}

	if req.RegisterNewDomain {
		steps = append(steps,
			struct {
				name string
				fn   stepFunc
			}{"checking_domain", func(ctx context.Context) (string, bool, error) {
				available, err := e.registrar.CheckAvailable(ctx, req.Domain)
				if err != nil {
					return "", false, err
				}
				if !available {
					return "", false, &providers.Error{Kind: providers.KindConflict, VendorMessage: "domain is not available"}
				}
				return "domain available", false, nil
			}},
			struct {
				name string
				fn   stepFunc
			}{"registering_domain", func(ctx context.Context) (string, bool, error) {
				if err := e.registrar.Register(ctx, req.Domain, 1, req.Registrant); err != nil {
					return "", false, err
				}
				return "domain registered", false, nil
			}},
		)
	}

	steps = append(steps,
		struct {
			name string
			fn   stepFunc
		}{"creating_site", func(ctx context.Context) (string, bool, error) {
			site, err := e.host.CreateSite(ctx, req.SiteName)
			if err != nil {
				return "", false, err
			}
			hostSite = site
			return fmt.Sprintf("site created: %s", site.ID), false, nil
		}},
		struct {
			name string
			fn   stepFunc
		}{"waiting_for_site", func(ctx context.Context) (string, bool, error) {
			site, err := e.host.WaitUntilReady(ctx, hostSite.ID)
			if err != nil {
				return "", false, err
			}
			hostSite = site
			return "site is live", false, nil
		}},
		struct {
			name string
			fn   stepFunc
		}{"mapping_domain", func(ctx context.Context) (string, bool, error) {
			if err := e.host.MapDomain(ctx, hostSite.ID, req.Domain); err != nil {
				return "", false, err
			}
			return "domain mapped to site", false, nil
		}},
		struct {
			name string
			fn   stepFunc
		}{"creating_cloudflare_zone", func(ctx context.Context) (string, bool, error) {
			id, ns, err := e.dns.GetOrCreateZone(ctx, req.Domain)
			if err != nil {
				return "", false, err
			}
			zoneID = id
			zoneNameservers = ns
			return "zone ready", false, nil
		}},
		struct {
			name string
			fn   stepFunc
		}{"setting_dns_records", func(ctx context.Context) (string, bool, error) {
			if err := e.dns.SetARecord(ctx, zoneID, req.Domain, hostSite.IPAddress); err != nil {
				return "", false, err
			}
			return "A record set", false, nil
		}},
	)

	if req.RegisterNewDomain {
		steps = append(steps, struct {
			name string
			fn   stepFunc
		}{"updating_nameservers", func(ctx context.Context) (string, bool, error) {
			if err := e.registrar.SetCustomNameservers(ctx, req.Domain, zoneNameservers); err != nil {
				return "", false, err
			}
			return "nameservers updated at registrar", false, nil
		}})
	} else {
		steps = append(steps, struct {
			name string
			fn   stepFunc
		}{"emit_nameserver_instructions", func(ctx context.Context) (string, bool, error) {
			result.NameserverInstructions = &models.NameserverInstructions{Nameservers: zoneNameservers}
			return "nameserver instructions ready for operator", false, nil
		}})
	}

	steps = append(steps,
		struct {
			name string
			fn   stepFunc
		}{"configuring_security", func(ctx context.Context) (string, bool, error) {
			if err := e.dns.ConfigureSecurity(ctx, zoneID); err != nil {
				return "", false, err
			}
			return "security configured", false, nil
		}},
		struct {
			name string
			fn   stepFunc
		}{"applying_deployment", func(ctx context.Context) (string, bool, error) {
			applyResult := e.applicator.Apply(ctx, hostSite.URL, req.Deployment, req.Content)
			if !applyResult.AllSucceeded() {
				// deployment application is soft-fail: a partial
				// branding/content apply never aborts the run.
				return applyResult.Summary(), true, nil
			}
			return applyResult.Summary(), false, nil
		}},
	)

	for _, step := range steps {
		if sink.Closed() {
			run.Status = models.WorkflowCanceled
			run.EndedAt = time.Now()
			log.Info().Str("run_id", run.ID).Str("step", step.name).Msg("provisioning run canceled: progress sink closed")
			return
		}
		rec := &models.StepRecord{Name: step.name, Status: models.StepRunning, StartedAt: time.Now()}
		run.Steps = append(run.Steps, rec)
		sink.Emit(models.ProgressEvent{RunID: run.ID, Step: step.name, Status: "started", Timestamp: time.Now()})

		detail, softFail, err := step.fn(ctx)
		rec.EndedAt = time.Now()
		rec.Detail = detail

		if err != nil && !softFail {
			rec.Status = models.StepFailed
			rec.Err = err
			run.Status = models.WorkflowFailed
			run.Err = err
			run.EndedAt = time.Now()
			sink.Emit(models.ProgressEvent{RunID: run.ID, Step: step.name, Status: "failed", Detail: err.Error(), Timestamp: time.Now()})
			log.Error().Str("run_id", run.ID).Str("step", step.name).Err(err).Msg("provisioning step failed")
			return
		}

		if softFail {
			rec.Status = models.StepSoftFailed
			sink.Emit(models.ProgressEvent{RunID: run.ID, Step: step.name, Status: "soft_failed", Detail: detail, Timestamp: time.Now()})
			continue
		}

		rec.Status = models.StepSucceeded
		sink.Emit(models.ProgressEvent{RunID: run.ID, Step: step.name, Status: "succeeded", Detail: detail, Timestamp: time.Now()})
	}

	result.FinalURLs = &models.FinalURLs{Site: "https://" + req.Domain}
	if hostSite != nil {
		result.FinalURLs.Admin = hostSite.URL + "/wp-admin"
	}
	run.Result = result

	run.Status = models.WorkflowCompleted
	run.EndedAt = time.Now()
	sink.Emit(models.ProgressEvent{RunID: run.ID, Step: "complete", Status: "succeeded", Timestamp: time.Now()})
}
