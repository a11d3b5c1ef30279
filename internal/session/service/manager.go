// Package service implements the session lifecycle: creation with per-account
// cap eviction, token validation, termination, and expiry cleanup. All durable
// state lives behind the store contract; the manager itself holds nothing
// mutable.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"travel-planner/backend/internal/risk"
	"travel-planner/backend/internal/security"
	"travel-planner/backend/internal/securityevent"
	eventdomain "travel-planner/backend/internal/securityevent/domain"
	"travel-planner/backend/internal/session/domain"
	"travel-planner/backend/internal/store"

	otelmetric "go.opentelemetry.io/otel/metric"
)

// Table is the backing table for sessions.
const Table = "user_sessions"

// Termination reasons recorded in event details. All terminal states are
// identical in effect; only the reason string differs.
const (
	ReasonExpired             = "expired"
	ReasonMaxSessionsExceeded = "max_sessions_exceeded"
	ReasonUserLogout          = "user_logout"
)

// ErrSessionCreationFailed wraps a store write failure during session
// creation. This is the only operation that aborts and bubbles to the caller;
// it is never retried internally.
var ErrSessionCreationFailed = errors.New("session creation failed")

// Config fixes the manager's limits at construction time.
// Zero values fall back to the documented defaults.
type Config struct {
	SessionDuration    time.Duration // default 24h
	MaxSessionsPerUser int           // default 5
	RateLimitWindow    time.Duration // default 15m; window for counting login failures
}

func (c Config) withDefaults() Config {
	if c.SessionDuration <= 0 {
		c.SessionDuration = 24 * time.Hour
	}
	if c.MaxSessionsPerUser <= 0 {
		c.MaxSessionsPerUser = 5
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = 15 * time.Minute
	}
	return c
}

// Manager owns all session mutation. Events flow through the recorder
// best-effort; a recorder or store hiccup on a telemetry path never fails the
// primary operation.
type Manager struct {
	store   store.Store
	events  securityevent.Recorder
	cfg     Config
	metrics lifecycleMetrics
}

// NewManager returns a Manager over the given store and event recorder.
// meter may be nil to disable lifecycle counters; events may be nil to
// disable audit records (tests only).
func NewManager(st store.Store, events securityevent.Recorder, meter otelmetric.Meter, cfg Config) *Manager {
	return &Manager{
		store:   st,
		events:  events,
		cfg:     cfg.withDefaults(),
		metrics: newLifecycleMetrics(meter),
	}
}

// CreateSession creates a new session for userID and returns it together with
// the plaintext token. The token is returned exactly once; only its hash is
// stored. If the account is at its session cap, the single oldest session is
// evicted first; creation never fails because of the cap.
func (m *Manager) CreateSession(ctx context.Context, userID, ip, userAgent string, deviceInfo, locationInfo map[string]any) (*domain.UserSession, string, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, "", err
	}
	sanitizedIP := ""
	if ip != "" {
		var err error
		sanitizedIP, err = domain.SanitizeIP(ip)
		if err != nil {
			return nil, "", err
		}
	}
	userAgent = domain.SanitizeUserAgent(userAgent)

	// Read-then-evict-then-insert is not atomic: two concurrent creations can
	// both see the cap as not yet exceeded and both insert. The next cleanup
	// or validation pass corrects the transient excess.
	active, err := m.GetActiveSessions(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	if len(active) >= m.cfg.MaxSessionsPerUser {
		oldest := active[0] // GetActiveSessions orders by created_at ascending
		if m.TerminateSession(ctx, oldest.ID, ReasonMaxSessionsExceeded, userID) {
			m.metrics.inc(ctx, m.metrics.evicted)
		}
	}

	id, err := security.NewSessionID()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	token, err := security.NewSessionToken()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	now := time.Now().UTC()
	session := &domain.UserSession{
		ID:             id,
		UserID:         userID,
		TokenHash:      security.HashSessionToken(token),
		IPAddress:      sanitizedIP,
		UserAgent:      userAgent,
		DeviceInfo:     deviceInfo,
		LocationInfo:   locationInfo,
		IsActive:       true,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.cfg.SessionDuration),
		LastActivityAt: now,
	}
	if err := session.Validate(); err != nil {
		return nil, "", err
	}

	if _, err := m.store.Insert(ctx, Table, []store.Row{rowFromSession(session)}); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	failures := m.recentLoginFailures(ctx, userID, now)
	m.record(ctx, securityevent.Event{
		Type:      eventdomain.EventLoginSuccess,
		UserID:    userID,
		IP:        sanitizedIP,
		UserAgent: userAgent,
		Details:   map[string]any{"session_id": session.ID},
		RiskScore: risk.LoginRisk(failures, sanitizedIP, userID),
	})
	m.metrics.inc(ctx, m.metrics.created)
	return session, token, nil
}

// ValidateSession resolves a presented token to its active session, refreshing
// activity state. It returns nil for forged, unknown, and expired tokens alike:
// nil means "not authenticated" and is indistinguishable across those cases.
// Store failures degrade to nil as well; they are logged, not propagated.
func (m *Manager) ValidateSession(ctx context.Context, token, ip, userAgent string) *domain.UserSession {
	// The hash is always computed and matched as an exact 64-hex filter value,
	// so the wrong-token and unknown-token paths do identical work.
	hash := security.HashSessionToken(token)

	rows, err := m.store.Select(ctx, Table, nil, store.Filter{"session_token": hash, "is_active": true}, &store.SelectOptions{Limit: 1})
	if err != nil {
		log.Printf("session: validate lookup failed: %v", err)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}
	session := sessionFromRow(rows[0])
	// The filter match alone is not trusted; the stored hash is re-checked
	// in constant time before the row authenticates anything.
	if !security.TokenHashEqual(token, session.TokenHash) {
		return nil
	}
	now := time.Now().UTC()

	if session.Expired(now) {
		m.expireSession(ctx, session)
		return nil
	}

	sanitizedIP := ""
	if ip != "" {
		if s, err := domain.SanitizeIP(ip); err == nil {
			sanitizedIP = s
		}
	}
	userAgent = domain.SanitizeUserAgent(userAgent)

	ipChanged := sanitizedIP != "" && session.IPAddress != "" && sanitizedIP != session.IPAddress
	uaChanged := userAgent != "" && session.UserAgent != "" && userAgent != session.UserAgent

	// Last-writer-wins: only the most recent context is retained.
	if _, err := m.store.Update(ctx, Table, store.Row{
		"last_activity_at": now,
		"ip_address":       nullable(sanitizedIP),
		"user_agent":       nullable(userAgent),
	}, store.Filter{"id": session.ID}); err != nil {
		log.Printf("session: activity refresh failed for %s: %v", session.ID, err)
	}

	score := risk.ActivityRisk(ipChanged, uaChanged)
	if score > risk.SuspiciousActivityThreshold {
		m.record(ctx, securityevent.Event{
			Type:      eventdomain.EventSuspiciousActivity,
			UserID:    session.UserID,
			IP:        sanitizedIP,
			UserAgent: userAgent,
			Details: map[string]any{
				"session_id": session.ID,
				"ip_changed": ipChanged,
				"ua_changed": uaChanged,
			},
			RiskScore: score,
			Severity:  eventdomain.SeverityWarning,
		})
		m.metrics.inc(ctx, m.metrics.suspicious)
	}

	session.LastActivityAt = now
	session.IPAddress = sanitizedIP
	session.UserAgent = userAgent
	return session
}

// TerminateSession marks the session inactive and stamps ended_at. Idempotent:
// a second call matches no active row and returns false, leaving the original
// ended_at untouched. When userID is supplied it also scopes the update,
// preventing cross-account termination, and a logout event is recorded on an
// actual change.
func (m *Manager) TerminateSession(ctx context.Context, sessionID, reason, userID string) bool {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return false
	}
	filter := store.Filter{"id": sessionID, "is_active": true}
	if userID != "" {
		filter["user_id"] = userID
	}
	changed, err := m.store.Update(ctx, Table, store.Row{
		"is_active": false,
		"ended_at":  time.Now().UTC(),
	}, filter)
	if err != nil {
		log.Printf("session: terminate %s failed: %v", sessionID, err)
		return false
	}
	if len(changed) == 0 {
		return false
	}
	if userID != "" {
		m.record(ctx, securityevent.Event{
			Type:    eventdomain.EventLogout,
			UserID:  userID,
			Details: map[string]any{"session_id": sessionID, "reason": reason},
		})
	}
	return true
}

// CleanupExpiredSessions terminates every active session whose expiry has
// passed and returns how many were terminated. A failing sweep returns 0;
// it is logged, never surfaced. Safe to run concurrently with validation:
// both expiry paths are idempotent and commute.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) int {
	now := time.Now().UTC()
	changed, err := m.store.Update(ctx, Table, store.Row{
		"is_active": false,
		"ended_at":  now,
	}, store.Filter{"is_active": true, "expires_at <": now})
	if err != nil {
		log.Printf("session: cleanup sweep failed: %v", err)
		return 0
	}
	for _, row := range changed {
		session := sessionFromRow(row)
		m.record(ctx, securityevent.Event{
			Type:    eventdomain.EventSessionExpired,
			UserID:  session.UserID,
			Details: map[string]any{"session_id": session.ID, "reason": ReasonExpired},
		})
		m.metrics.inc(ctx, m.metrics.expired)
	}
	return len(changed)
}

// GetActiveSessions returns the account's active, unexpired sessions ordered
// oldest first.
func (m *Manager) GetActiveSessions(ctx context.Context, userID string) ([]*domain.UserSession, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}
	rows, err := m.store.Select(ctx, Table, nil, store.Filter{
		"user_id":      userID,
		"is_active":    true,
		"expires_at >": time.Now().UTC(),
	}, &store.SelectOptions{OrderBy: "created_at"})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.UserSession, len(rows))
	for i, row := range rows {
		out[i] = sessionFromRow(row)
	}
	return out, nil
}

// RecordLoginFailure records a failed authentication attempt for the account.
// The surrounding auth layer calls this on bad credentials; the resulting rows
// feed the recent-failure count behind login risk and the 24h metrics.
func (m *Manager) RecordLoginFailure(ctx context.Context, userID, ip, userAgent, reason string) {
	now := time.Now().UTC()
	failures := m.recentLoginFailures(ctx, userID, now) + 1
	m.record(ctx, securityevent.Event{
		Type:      eventdomain.EventLoginFailed,
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		Details:   map[string]any{"reason": reason},
		RiskScore: risk.LoginRisk(failures, ip, userID),
		Severity:  eventdomain.SeverityWarning,
	})
}

// expireSession flips a session found expired during validation and records
// the expiry. Identical in effect to the cleanup sweep.
func (m *Manager) expireSession(ctx context.Context, session *domain.UserSession) {
	changed, err := m.store.Update(ctx, Table, store.Row{
		"is_active": false,
		"ended_at":  time.Now().UTC(),
	}, store.Filter{"id": session.ID, "is_active": true})
	if err != nil {
		log.Printf("session: expire %s failed: %v", session.ID, err)
		return
	}
	if len(changed) == 0 {
		return
	}
	m.record(ctx, securityevent.Event{
		Type:    eventdomain.EventSessionExpired,
		UserID:  session.UserID,
		Details: map[string]any{"session_id": session.ID, "reason": ReasonExpired},
	})
	m.metrics.inc(ctx, m.metrics.expired)
}

// recentLoginFailures counts login_failed events for the account inside the
// rate-limit window. Best-effort: a read failure counts as zero.
func (m *Manager) recentLoginFailures(ctx context.Context, userID string, now time.Time) int {
	rows, err := m.store.Select(ctx, securityevent.Table, []string{"id"}, store.Filter{
		"user_id":      userID,
		"event_type":   string(eventdomain.EventLoginFailed),
		"created_at >": now.Add(-m.cfg.RateLimitWindow),
	}, nil)
	if err != nil {
		log.Printf("session: failure count read failed for %q: %v", userID, err)
		return 0
	}
	return len(rows)
}

func (m *Manager) record(ctx context.Context, ev securityevent.Event) {
	if m.events == nil {
		return
	}
	m.events.Record(ctx, ev)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
