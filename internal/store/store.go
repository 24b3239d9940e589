// Package store defines the persistence abstraction for the control
// plane: one small interface per entity, composed into Store, with both
// an in-memory and a Postgres-backed implementation.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sitepilot/control-plane/pkg/models"
)

// ErrNotFound is returned when a lookup by key finds nothing.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// ListFilter bounds and paginates a listing query.
type ListFilter struct {
	Limit  int
	Offset int
	Since  time.Time
}

// ProxySiteStore persists ProxySite records.
type ProxySiteStore interface {
	CreateProxySite(ctx context.Context, site *models.ProxySite) error
	GetProxySiteByID(ctx context.Context, id string) (*models.ProxySite, error)
	GetProxySiteByAPIKey(ctx context.Context, apiKey string) (*models.ProxySite, error)
	UpdateProxySiteStatus(ctx context.Context, id, status string) error
	UpdateProxySiteTier(ctx context.Context, id, tierName string) error
	ListProxySites(ctx context.Context, tenantID string, filter ListFilter) ([]*models.ProxySite, error)
}

// SubscriptionTierStore persists SubscriptionTier records.
type SubscriptionTierStore interface {
	GetTier(ctx context.Context, name string) (*models.SubscriptionTier, error)
	ListTiers(ctx context.Context) ([]*models.SubscriptionTier, error)
	UpsertTier(ctx context.Context, tier *models.SubscriptionTier) error
}

// ProxyRequestLogStore persists ProxyRequestLog rows and answers quota
// queries over them.
type ProxyRequestLogStore interface {
	AppendRequestLog(ctx context.Context, entry *models.ProxyRequestLog) error
	SumTokensSince(ctx context.Context, proxySiteID string, since time.Time) (int64, error)
	ListRequestLogs(ctx context.Context, proxySiteID string, filter ListFilter) ([]*models.ProxyRequestLog, error)
	DeleteRequestLogsBefore(ctx context.Context, before time.Time) (int64, error)
}

// EditSessionStore persists EditSession records.
type EditSessionStore interface {
	CreateSession(ctx context.Context, session *models.EditSession) error
	GetSession(ctx context.Context, id string) (*models.EditSession, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	ListSessions(ctx context.Context, siteID string, filter ListFilter) ([]*models.EditSession, error)
}

// EditMessageStore persists EditMessage records in strict append order.
type EditMessageStore interface {
	AppendMessage(ctx context.Context, msg *models.EditMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]*models.EditMessage, error)
}

// TraceStore persists Trace records for provider-client observability.
type TraceStore interface {
	RecordTrace(ctx context.Context, trace *models.Trace) error
	ListTraces(ctx context.Context, tenantID string, filter ListFilter) ([]*models.Trace, error)
}

// AuditStore persists AuditEvent records.
type AuditStore interface {
	RecordAudit(ctx context.Context, event *models.AuditEvent) error
	ListAudit(ctx context.Context, proxySiteID string, filter ListFilter) ([]*models.AuditEvent, error)
}

// Store is the full persistence surface the control plane depends on.
type Store interface {
	ProxySiteStore
	SubscriptionTierStore
	ProxyRequestLogStore
	EditSessionStore
	EditMessageStore
	TraceStore
	AuditStore

	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}
