package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepilot/control-plane/pkg/models"
)

func TestMemoryStore_ProxySiteLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	site := &models.ProxySite{ID: "site-1", TenantID: "tenant-1", Domain: "example.com", APIKey: "wts_abc", TierName: "free", Status: "active", CreatedAt: time.Now()}
	require.NoError(t, s.CreateProxySite(ctx, site))

	got, err := s.GetProxySiteByAPIKey(ctx, "wts_abc")
	require.NoError(t, err)
	assert.Equal(t, "site-1", got.ID)

	require.NoError(t, s.UpdateProxySiteStatus(ctx, "site-1", "revoked"))
	got, err = s.GetProxySiteByID(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, "revoked", got.Status)

	_, err = s.GetProxySiteByID(ctx, "missing")
	assert.ErrorAs(t, err, new(*ErrNotFound))
}

func TestMemoryStore_UpdateTier_UnknownTierRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateProxySite(ctx, &models.ProxySite{ID: "site-1", TierName: "free"}))

	err := s.UpdateProxySiteTier(ctx, "site-1", "enterprise-typo")
	assert.Error(t, err)
}

func TestMemoryStore_SumTokensSince(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.AppendRequestLog(ctx, &models.ProxyRequestLog{ProxySiteID: "site-1", TotalTokens: 100, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.AppendRequestLog(ctx, &models.ProxyRequestLog{ProxySiteID: "site-1", TotalTokens: 50, CreatedAt: now}))
	require.NoError(t, s.AppendRequestLog(ctx, &models.ProxyRequestLog{ProxySiteID: "site-2", TotalTokens: 999, CreatedAt: now}))

	total, err := s.SumTokensSince(ctx, "site-1", now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 150, total)
}

func TestMemoryStore_EditMessagesPreserveOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateSession(ctx, &models.EditSession{ID: "sess-1", SiteID: "site-1"}))

	require.NoError(t, s.AppendMessage(ctx, &models.EditMessage{SessionID: "sess-1", Role: "system", Content: "you are an editor"}))
	require.NoError(t, s.AppendMessage(ctx, &models.EditMessage{SessionID: "sess-1", Role: "user", Content: "change the title"}))

	msgs, err := s.ListMessages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
}

func TestMemoryStore_AppendMessage_UnknownSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	err := s.AppendMessage(ctx, &models.EditMessage{SessionID: "missing", Role: "user", Content: "hi"})
	assert.Error(t, err)
}
