package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitepilot/control-plane/pkg/models"
)

// MemoryStore is an in-memory Store implementation. It is safe for
// concurrent use and is the default store when DATABASE_URL is unset.
type MemoryStore struct {
	mu sync.RWMutex

	sites    map[string]*models.ProxySite
	tiers    map[string]*models.SubscriptionTier
	logs     []*models.ProxyRequestLog
	sessions map[string]*models.EditSession
	messages map[string][]*models.EditMessage
	traces   []*models.Trace
	audit    []*models.AuditEvent
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty MemoryStore seeded with a default
// "free" tier.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		sites:    make(map[string]*models.ProxySite),
		tiers:    make(map[string]*models.SubscriptionTier),
		sessions: make(map[string]*models.EditSession),
		messages: make(map[string][]*models.EditMessage),
	}
	s.tiers["free"] = &models.SubscriptionTier{
		Name:              "free",
		MonthlyTokenQuota: 100_000,
		RequestsPerMinute: 10,
		AllowedModels:     []string{"gpt-4o-mini", "gemini-1.5-flash"},
	}
	return s
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateProxySite(ctx context.Context, site *models.ProxySite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *site
	s.sites[site.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProxySiteByID(ctx context.Context, id string) (*models.ProxySite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "proxy_site", Key: id}
	}
	cp := *site
	return &cp, nil
}

func (s *MemoryStore) GetProxySiteByAPIKey(ctx context.Context, apiKey string) (*models.ProxySite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, site := range s.sites {
		if site.APIKey == apiKey {
			cp := *site
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "proxy_site", Key: "<api-key>"}
}

func (s *MemoryStore) UpdateProxySiteStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return &ErrNotFound{Entity: "proxy_site", Key: id}
	}
	site.Status = status
	return nil
}

func (s *MemoryStore) UpdateProxySiteTier(ctx context.Context, id, tierName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return &ErrNotFound{Entity: "proxy_site", Key: id}
	}
	if _, ok := s.tiers[tierName]; !ok {
		return &ErrNotFound{Entity: "subscription_tier", Key: tierName}
	}
	site.TierName = tierName
	return nil
}

func (s *MemoryStore) ListProxySites(ctx context.Context, tenantID string, filter ListFilter) ([]*models.ProxySite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ProxySite
	for _, site := range s.sites {
		if tenantID != "" && site.TenantID != tenantID {
			continue
		}
		cp := *site
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return applyPaging(out, filter), nil
}

func (s *MemoryStore) GetTier(ctx context.Context, name string) (*models.SubscriptionTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tier, ok := s.tiers[name]
	if !ok {
		return nil, &ErrNotFound{Entity: "subscription_tier", Key: name}
	}
	cp := *tier
	return &cp, nil
}

func (s *MemoryStore) ListTiers(ctx context.Context) ([]*models.SubscriptionTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SubscriptionTier, 0, len(s.tiers))
	for _, t := range s.tiers {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) UpsertTier(ctx context.Context, tier *models.SubscriptionTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tier
	s.tiers[tier.Name] = &cp
	return nil
}

func (s *MemoryStore) AppendRequestLog(ctx context.Context, entry *models.ProxyRequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *MemoryStore) SumTokensSince(ctx context.Context, proxySiteID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, l := range s.logs {
		if l.ProxySiteID == proxySiteID && l.CreatedAt.After(since) {
			total += int64(l.TotalTokens)
		}
	}
	return total, nil
}

func (s *MemoryStore) ListRequestLogs(ctx context.Context, proxySiteID string, filter ListFilter) ([]*models.ProxyRequestLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ProxyRequestLog
	for _, l := range s.logs {
		if l.ProxySiteID == proxySiteID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return applyPaging(out, filter), nil
}

func (s *MemoryStore) DeleteRequestLogsBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*models.ProxyRequestLog
	var deleted int64
	for _, l := range s.logs {
		if l.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	s.logs = kept
	return deleted, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *models.EditSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (*models.EditSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "edit_session", Key: id}
	}
	cp := *session
	return &cp, nil
}

func (s *MemoryStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return &ErrNotFound{Entity: "edit_session", Key: id}
	}
	session.UpdatedAt = at
	return nil
}

func (s *MemoryStore) ListSessions(ctx context.Context, siteID string, filter ListFilter) ([]*models.EditSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EditSession
	for _, sess := range s.sessions {
		if sess.SiteID == siteID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return applyPaging(out, filter), nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.EditMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[msg.SessionID]; !ok {
		return &ErrNotFound{Entity: "edit_session", Key: msg.SessionID}
	}
	cp := *msg
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], &cp)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, sessionID string) ([]*models.EditMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	out := make([]*models.EditMessage, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) RecordTrace(ctx context.Context, trace *models.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *trace
	s.traces = append(s.traces, &cp)
	return nil
}

func (s *MemoryStore) ListTraces(ctx context.Context, tenantID string, filter ListFilter) ([]*models.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Trace
	for _, t := range s.traces {
		if tenantID != "" && t.TenantID != tenantID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return applyPaging(out, filter), nil
}

func (s *MemoryStore) RecordAudit(ctx context.Context, event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *MemoryStore) ListAudit(ctx context.Context, proxySiteID string, filter ListFilter) ([]*models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AuditEvent
	for _, a := range s.audit {
		if a.ProxySiteID == proxySiteID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return applyPaging(out, filter), nil
}

func applyPaging[T any](items []T, filter ListFilter) []T {
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}
	return items
}
