package proxy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepilot/control-plane/internal/providers/aivendor"
	"github.com/sitepilot/control-plane/internal/store"
	"github.com/sitepilot/control-plane/pkg/models"
)

type fakeDriver struct {
	vendor string
	calls  int
}

func (f *fakeDriver) Vendor() string { return f.vendor }
func (f *fakeDriver) Complete(ctx context.Context, model string, messages []models.ChatMessage, maxTokens int, temperature float64) (*models.AIResponse, error) {
	f.calls++
	return &models.AIResponse{Content: "hello back", Model: model, Usage: models.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}, nil
}

var _ aivendor.Client = (*fakeDriver)(nil)

func newTestGateway(t *testing.T) (*Gateway, *models.ProxySite) {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertTier(context.Background(), &models.SubscriptionTier{
		Name: "free", MonthlyTokenQuota: 100, RequestsPerMinute: 600,
	}))
	site := &models.ProxySite{ID: "site-1", TenantID: "t1", APIKey: "wts_0123456789012345678901234567890123456789", TierName: "free", Status: "active", CreatedAt: time.Now()}
	require.NoError(t, s.CreateProxySite(context.Background(), site))

	g := New(s, map[string]aivendor.Client{"openai": &fakeDriver{vendor: "openai"}})
	return g, site
}

func TestGateway_Authenticate_RejectsMalformedKey(t *testing.T) {
	g, _ := newTestGateway(t)
	_, err := g.Authenticate(context.Background(), "not-a-real-key")
	assert.Error(t, err)
}

func TestGateway_Authenticate_RejectsRevokedSite(t *testing.T) {
	g, site := newTestGateway(t)
	require.NoError(t, g.store.UpdateProxySiteStatus(context.Background(), site.ID, "revoked"))

	_, err := g.Authenticate(context.Background(), site.APIKey)
	assert.Error(t, err)
}

func TestGateway_Authenticate_Succeeds(t *testing.T) {
	g, site := newTestGateway(t)
	got, err := g.Authenticate(context.Background(), site.APIKey)
	require.NoError(t, err)
	assert.Equal(t, site.ID, got.ID)
}

func TestGateway_Chat_RoutesByModelPrefix(t *testing.T) {
	g, site := newTestGateway(t)
	resp, err := g.Chat(context.Background(), site, "gpt-4o-mini", []models.ChatMessage{{Role: "user", Content: "hi"}}, aivendor.DefaultMaxTokens, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "hello back", resp.Choices[0].Message.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestGateway_Chat_UnknownModelPrefixRejected(t *testing.T) {
	g, site := newTestGateway(t)
	_, err := g.Chat(context.Background(), site, "llama-3", nil, aivendor.DefaultMaxTokens, 0.7)
	assert.Error(t, err)
}

func TestGateway_Chat_QuotaExceeded(t *testing.T) {
	g, site := newTestGateway(t)
	require.NoError(t, g.store.AppendRequestLog(context.Background(), &models.ProxyRequestLog{
		ProxySiteID: site.ID, TotalTokens: 100, CreatedAt: time.Now(),
	}))

	_, err := g.Chat(context.Background(), site, "gpt-4o-mini", nil, aivendor.DefaultMaxTokens, 0.7)
	assert.Error(t, err)
}

func TestGateway_UsageSummary(t *testing.T) {
	g, site := newTestGateway(t)
	_, err := g.Chat(context.Background(), site, "gpt-4o-mini", []models.ChatMessage{{Role: "user", Content: "hi"}}, aivendor.DefaultMaxTokens, 0.7)
	require.NoError(t, err)

	used, quota, err := g.UsageSummary(context.Background(), site)
	require.NoError(t, err)
	assert.EqualValues(t, 15, used)
	assert.EqualValues(t, 100, quota)
}
