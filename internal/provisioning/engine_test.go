package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepilot/control-plane/internal/applicator"
	"github.com/sitepilot/control-plane/internal/providers/registrar"
	"github.com/sitepilot/control-plane/pkg/models"
)

type fakeRegistrar struct {
	available       bool
	registered      bool
	customNameservers []string
}

func (f *fakeRegistrar) CheckAvailable(ctx context.Context, domain string) (bool, error) {
	return f.available, nil
}
func (f *fakeRegistrar) Register(ctx context.Context, domain string, years int, registrant registrar.Registrant) error {
	f.registered = true
	return nil
}
func (f *fakeRegistrar) SetCustomNameservers(ctx context.Context, domain string, nameservers []string) error {
	f.customNameservers = nameservers
	return nil
}

type fakeDNS struct{}

func (f *fakeDNS) GetOrCreateZone(ctx context.Context, domain string) (string, []string, error) {
	return "zone-1", []string{"ns1.example.net", "ns2.example.net"}, nil
}
func (f *fakeDNS) SetARecord(ctx context.Context, zoneID, name, ip string) error { return nil }
func (f *fakeDNS) ConfigureSecurity(ctx context.Context, zoneID string) error    { return nil }

type fakeHost struct{}

func (f *fakeHost) CreateSite(ctx context.Context, siteName string) (*HostSite, error) {
	return &HostSite{ID: "site-1", URL: "https://site-1.example", IPAddress: "203.0.113.5"}, nil
}
func (f *fakeHost) WaitUntilReady(ctx context.Context, siteID string) (*HostSite, error) {
	return &HostSite{ID: siteID, URL: "https://site-1.example", IPAddress: "203.0.113.5"}, nil
}
func (f *fakeHost) MapDomain(ctx context.Context, siteID, domain string) error { return nil }

type fakeSiteClient struct{}

func (f *fakeSiteClient) UpdateSettings(ctx context.Context, siteURL string, settings map[string]string) error {
	return nil
}
func (f *fakeSiteClient) UploadAsset(ctx context.Context, siteURL, kind, assetURL string) error {
	return nil
}
func (f *fakeSiteClient) InstallPlugin(ctx context.Context, siteURL, slug string, config map[string]string) error {
	return nil
}
func (f *fakeSiteClient) CreatePage(ctx context.Context, siteURL, title, content, slug, status string) (string, error) {
	return "page-" + slug, nil
}
func (f *fakeSiteClient) SetFrontPageByID(ctx context.Context, siteURL, pageID string) error {
	return nil
}

func waitForCompletion(t *testing.T, e *Engine, runID string) *models.WorkflowRun {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		run, ok := e.GetRun(runID)
		require.True(t, ok)
		if run.Status == models.WorkflowCompleted || run.Status == models.WorkflowFailed {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("workflow did not finish in time")
	return nil
}

func stepNames(run *models.WorkflowRun) []string {
	names := make([]string, len(run.Steps))
	for i, s := range run.Steps {
		names[i] = s.Name
	}
	return names
}

func TestEngine_HappyPath_ExistingDomainEmitsNameserverInstructions(t *testing.T) {
	app := applicator.New(&fakeSiteClient{}, nil)
	e := New(&fakeRegistrar{available: true}, &fakeDNS{}, &fakeHost{}, app)

	runID, sink := e.Start(context.Background(), Request{
		TenantID:          "tenant-1",
		Domain:            "example.com",
		SiteName:          "example-site",
		RegisterNewDomain: false,
		Deployment:        models.DeploymentContext{Template: models.Template{Slug: "flexify"}},
	})
	require.NotEmpty(t, runID)

	var events []models.ProgressEvent
	done := make(chan struct{})
	go func() {
		for ev := range sink.Events() {
			events = append(events, ev)
		}
		close(done)
	}()

	run := waitForCompletion(t, e, runID)
	<-done

	assert.Equal(t, models.WorkflowCompleted, run.Status)
	assert.NotEmpty(t, events)
	assert.Equal(t, "complete", events[len(events)-1].Step)

	assert.NotContains(t, stepNames(run), "checking_domain")
	assert.NotContains(t, stepNames(run), "registering_domain")
	assert.Contains(t, stepNames(run), "emit_nameserver_instructions")

	require.NotNil(t, run.Result)
	require.NotNil(t, run.Result.NameserverInstructions)
	assert.Equal(t, []string{"ns1.example.net", "ns2.example.net"}, run.Result.NameserverInstructions.Nameservers)
	require.NotNil(t, run.Result.FinalURLs)
	assert.Equal(t, "https://example.com", run.Result.FinalURLs.Site)
}

func TestEngine_RegisterNewDomain_UpdatesNameserversInsteadOfInstructions(t *testing.T) {
	app := applicator.New(&fakeSiteClient{}, nil)
	registrarClient := &fakeRegistrar{available: true}
	e := New(registrarClient, &fakeDNS{}, &fakeHost{}, app)

	runID, sink := e.Start(context.Background(), Request{
		TenantID:          "tenant-1",
		Domain:            "new-domain.com",
		SiteName:          "new-domain-site",
		RegisterNewDomain: true,
	})
	go func() {
		for range sink.Events() {
		}
	}()

	run := waitForCompletion(t, e, runID)
	assert.Equal(t, models.WorkflowCompleted, run.Status)

	assert.Contains(t, stepNames(run), "checking_domain")
	assert.Contains(t, stepNames(run), "registering_domain")
	assert.Contains(t, stepNames(run), "updating_nameservers")
	assert.NotContains(t, stepNames(run), "emit_nameserver_instructions")

	assert.True(t, registrarClient.registered)
	assert.Equal(t, []string{"ns1.example.net", "ns2.example.net"}, registrarClient.customNameservers)
	require.NotNil(t, run.Result)
	assert.Nil(t, run.Result.NameserverInstructions)
}

func TestEngine_DomainUnavailableFailsRun(t *testing.T) {
	app := applicator.New(&fakeSiteClient{}, nil)
	e := New(&fakeRegistrar{available: false}, &fakeDNS{}, &fakeHost{}, app)

	runID, sink := e.Start(context.Background(), Request{
		TenantID: "tenant-1", Domain: "taken.com", SiteName: "taken-site", RegisterNewDomain: true,
	})
	go func() {
		for range sink.Events() {
		}
	}()

	run := waitForCompletion(t, e, runID)
	assert.Equal(t, models.WorkflowFailed, run.Status)
	require.Error(t, run.Err)
}

func TestEngine_MissingConfigFailsFast(t *testing.T) {
	app := applicator.New(&fakeSiteClient{}, nil)
	e := New(&fakeRegistrar{available: true}, &fakeDNS{}, &fakeHost{}, app)

	runID, sink := e.Start(context.Background(), Request{TenantID: "tenant-1"})
	go func() {
		for range sink.Events() {
		}
	}()

	run := waitForCompletion(t, e, runID)
	assert.Equal(t, models.WorkflowFailed, run.Status)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, "validating_config", run.Steps[0].Name)
}
