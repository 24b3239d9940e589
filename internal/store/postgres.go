package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitepilot/control-plane/pkg/models"
)

// PostgresStore is the production Store implementation, backed by a
// pooled pgx connection. All mutations go through parameterized
// queries; no caller-controlled value is ever interpolated into SQL
// text.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens a connection pool against url (a Postgres
// connection string), capped at 10 connections per the control plane's
// concurrency budget.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("store: parsing DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: opening pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *PostgresStore) Close() error                   { s.pool.Close(); return nil }

// Migrate applies the control plane's schema. It is idempotent
// (CREATE TABLE IF NOT EXISTS) so it's safe to run on every startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("store: running migrations: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS proxy_subscription_tiers (
	name text PRIMARY KEY,
	monthly_token_quota bigint NOT NULL,
	requests_per_minute int NOT NULL,
	allowed_models text[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS proxy_sites (
	id text PRIMARY KEY,
	tenant_id text NOT NULL,
	domain text NOT NULL,
	api_key text NOT NULL UNIQUE,
	tier_name text NOT NULL REFERENCES proxy_subscription_tiers(name),
	status text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	revoked_at timestamptz
);

CREATE TABLE IF NOT EXISTS proxy_request_log (
	id text PRIMARY KEY,
	proxy_site_id text NOT NULL REFERENCES proxy_sites(id),
	model text NOT NULL,
	vendor text NOT NULL,
	prompt_tokens int NOT NULL,
	completion_tokens int NOT NULL,
	total_tokens int NOT NULL,
	status_code int NOT NULL,
	error text,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_proxy_request_log_site_time ON proxy_request_log (proxy_site_id, created_at);

CREATE TABLE IF NOT EXISTS editor_sessions (
	id text PRIMARY KEY,
	tenant_id text NOT NULL,
	site_id text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS editor_messages (
	id text PRIMARY KEY,
	session_id text NOT NULL REFERENCES editor_sessions(id),
	role text NOT NULL,
	content text NOT NULL,
	metadata jsonb,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_editor_messages_session ON editor_messages (session_id, created_at);

CREATE TABLE IF NOT EXISTS provider_traces (
	id text PRIMARY KEY,
	tenant_id text NOT NULL,
	component text NOT NULL,
	duration_ms bigint NOT NULL,
	error text,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS proxy_audit_events (
	id text PRIMARY KEY,
	proxy_site_id text NOT NULL REFERENCES proxy_sites(id),
	action text NOT NULL,
	detail text,
	created_at timestamptz NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) CreateProxySite(ctx context.Context, site *models.ProxySite) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proxy_sites (id, tenant_id, domain, api_key, tier_name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		site.ID, site.TenantID, site.Domain, site.APIKey, site.TierName, site.Status, site.CreatedAt)
	return err
}

func (s *PostgresStore) GetProxySiteByID(ctx context.Context, id string) (*models.ProxySite, error) {
	return s.scanSite(ctx, `SELECT id, tenant_id, domain, api_key, tier_name, status, created_at, revoked_at FROM proxy_sites WHERE id = $1`, id)
}

func (s *PostgresStore) GetProxySiteByAPIKey(ctx context.Context, apiKey string) (*models.ProxySite, error) {
	return s.scanSite(ctx, `SELECT id, tenant_id, domain, api_key, tier_name, status, created_at, revoked_at FROM proxy_sites WHERE api_key = $1`, apiKey)
}

func (s *PostgresStore) scanSite(ctx context.Context, query string, arg string) (*models.ProxySite, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	var site models.ProxySite
	err := row.Scan(&site.ID, &site.TenantID, &site.Domain, &site.APIKey, &site.TierName, &site.Status, &site.CreatedAt, &site.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "proxy_site", Key: arg}
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// UpdateProxySiteStatus updates a site's status using a parameterized
// query; id and status are always bound, never interpolated.
func (s *PostgresStore) UpdateProxySiteStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE proxy_sites SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "proxy_site", Key: id}
	}
	return nil
}

func (s *PostgresStore) UpdateProxySiteTier(ctx context.Context, id, tierName string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT true FROM proxy_subscription_tiers WHERE name = $1`, tierName).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &ErrNotFound{Entity: "subscription_tier", Key: tierName}
		}
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE proxy_sites SET tier_name = $1 WHERE id = $2`, tierName, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "proxy_site", Key: id}
	}
	return nil
}

func (s *PostgresStore) ListProxySites(ctx context.Context, tenantID string, filter ListFilter) ([]*models.ProxySite, error) {
	limit, offset := filter.Limit, filter.Offset
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, domain, api_key, tier_name, status, created_at, revoked_at
		 FROM proxy_sites WHERE ($1 = '' OR tenant_id = $1) ORDER BY created_at LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ProxySite
	for rows.Next() {
		var site models.ProxySite
		if err := rows.Scan(&site.ID, &site.TenantID, &site.Domain, &site.APIKey, &site.TierName, &site.Status, &site.CreatedAt, &site.RevokedAt); err != nil {
			return nil, err
		}
		out = append(out, &site)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetTier(ctx context.Context, name string) (*models.SubscriptionTier, error) {
	row := s.pool.QueryRow(ctx, `SELECT name, monthly_token_quota, requests_per_minute, allowed_models FROM proxy_subscription_tiers WHERE name = $1`, name)
	var tier models.SubscriptionTier
	if err := row.Scan(&tier.Name, &tier.MonthlyTokenQuota, &tier.RequestsPerMinute, &tier.AllowedModels); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "subscription_tier", Key: name}
		}
		return nil, err
	}
	return &tier, nil
}

func (s *PostgresStore) ListTiers(ctx context.Context) ([]*models.SubscriptionTier, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, monthly_token_quota, requests_per_minute, allowed_models FROM proxy_subscription_tiers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SubscriptionTier
	for rows.Next() {
		var tier models.SubscriptionTier
		if err := rows.Scan(&tier.Name, &tier.MonthlyTokenQuota, &tier.RequestsPerMinute, &tier.AllowedModels); err != nil {
			return nil, err
		}
		out = append(out, &tier)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertTier(ctx context.Context, tier *models.SubscriptionTier) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proxy_subscription_tiers (name, monthly_token_quota, requests_per_minute, allowed_models)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET monthly_token_quota = $2, requests_per_minute = $3, allowed_models = $4`,
		tier.Name, tier.MonthlyTokenQuota, tier.RequestsPerMinute, tier.AllowedModels)
	return err
}

func (s *PostgresStore) AppendRequestLog(ctx context.Context, entry *models.ProxyRequestLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proxy_request_log (id, proxy_site_id, model, vendor, prompt_tokens, completion_tokens, total_tokens, status_code, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.ProxySiteID, entry.Model, entry.Vendor, entry.PromptTokens, entry.CompletionTokens, entry.TotalTokens, entry.StatusCode, entry.Err, entry.CreatedAt)
	return err
}

func (s *PostgresStore) SumTokensSince(ctx context.Context, proxySiteID string, since time.Time) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM proxy_request_log WHERE proxy_site_id = $1 AND created_at > $2`,
		proxySiteID, since).Scan(&total)
	return total, err
}

func (s *PostgresStore) ListRequestLogs(ctx context.Context, proxySiteID string, filter ListFilter) ([]*models.ProxyRequestLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, proxy_site_id, model, vendor, prompt_tokens, completion_tokens, total_tokens, status_code, error, created_at
		 FROM proxy_request_log WHERE proxy_site_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`,
		proxySiteID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ProxyRequestLog
	for rows.Next() {
		var l models.ProxyRequestLog
		if err := rows.Scan(&l.ID, &l.ProxySiteID, &l.Model, &l.Vendor, &l.PromptTokens, &l.CompletionTokens, &l.TotalTokens, &l.StatusCode, &l.Err, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteRequestLogsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM proxy_request_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.EditSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO editor_sessions (id, tenant_id, site_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.TenantID, session.SiteID, session.CreatedAt, session.UpdatedAt)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.EditSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, tenant_id, site_id, created_at, updated_at FROM editor_sessions WHERE id = $1`, id)
	var sess models.EditSession
	if err := row.Scan(&sess.ID, &sess.TenantID, &sess.SiteID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "edit_session", Key: id}
		}
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE editor_sessions SET updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "edit_session", Key: id}
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, siteID string, filter ListFilter) ([]*models.EditSession, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, site_id, created_at, updated_at FROM editor_sessions WHERE site_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`,
		siteID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EditSession
	for rows.Next() {
		var sess models.EditSession
		if err := rows.Scan(&sess.ID, &sess.TenantID, &sess.SiteID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.EditMessage) error {
	var metadata []byte
	if len(msg.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshaling message metadata: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO editor_messages (id, session_id, role, content, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, metadata, msg.CreatedAt)
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string) ([]*models.EditMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, metadata, created_at FROM editor_messages WHERE session_id = $1 ORDER BY created_at`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EditMessage
	for rows.Next() {
		var m models.EditMessage
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				return nil, fmt.Errorf("store: unmarshaling message metadata: %w", err)
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordTrace(ctx context.Context, trace *models.Trace) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_traces (id, tenant_id, component, duration_ms, error, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		trace.ID, trace.TenantID, trace.Component, trace.DurationMS, trace.Err, trace.CreatedAt)
	return err
}

func (s *PostgresStore) ListTraces(ctx context.Context, tenantID string, filter ListFilter) ([]*models.Trace, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, component, duration_ms, error, created_at FROM provider_traces WHERE ($1 = '' OR tenant_id = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Trace
	for rows.Next() {
		var t models.Trace
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Component, &t.DurationMS, &t.Err, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordAudit(ctx context.Context, event *models.AuditEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proxy_audit_events (id, proxy_site_id, action, detail, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.ProxySiteID, event.Action, event.Detail, event.CreatedAt)
	return err
}

func (s *PostgresStore) ListAudit(ctx context.Context, proxySiteID string, filter ListFilter) ([]*models.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, proxy_site_id, action, detail, created_at FROM proxy_audit_events WHERE proxy_site_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		proxySiteID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AuditEvent
	for rows.Next() {
		var a models.AuditEvent
		if err := rows.Scan(&a.ID, &a.ProxySiteID, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
