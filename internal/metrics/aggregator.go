// Package metrics derives an account's point-in-time security posture from
// the session and event tables. Metrics are best-effort telemetry: any read
// failure degrades to a zero-valued result, never an error.
package metrics

import (
	"context"
	"log"
	"time"

	"travel-planner/backend/internal/risk"
	eventdomain "travel-planner/backend/internal/securityevent/domain"
	"travel-planner/backend/internal/store"
)

const (
	sessionsTable = "user_sessions"
	eventsTable   = "security_events"

	loginWindow = 24 * time.Hour
	eventWindow = 7 * 24 * time.Hour
)

// SessionSecurityMetrics is a derived aggregate. It is computed on demand and
// never cached or persisted.
type SessionSecurityMetrics struct {
	ActiveSessions      int
	FailedLogins24h     int
	SuccessfulLogins24h int
	SecurityEvents7d    int
	RiskScore           int
	LastSuccessfulLogin *time.Time // nil when the account has never logged in
}

// Aggregator computes security metrics from the store.
type Aggregator struct {
	store store.Store
}

// NewAggregator returns an Aggregator over the given store.
func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// SecurityMetrics returns the account's current posture. Each input is one
// independent filtered read; if any of them fails the whole result degrades
// to the zero value (logged internally).
func (a *Aggregator) SecurityMetrics(ctx context.Context, userID string) SessionSecurityMetrics {
	now := time.Now().UTC()

	activeSessions, err := a.count(ctx, sessionsTable, store.Filter{
		"user_id":      userID,
		"is_active":    true,
		"expires_at >": now,
	})
	if err != nil {
		return a.degrade(userID, err)
	}
	failedLogins, err := a.count(ctx, eventsTable, store.Filter{
		"user_id":      userID,
		"event_type":   string(eventdomain.EventLoginFailed),
		"created_at >": now.Add(-loginWindow),
	})
	if err != nil {
		return a.degrade(userID, err)
	}
	successfulLogins, err := a.count(ctx, eventsTable, store.Filter{
		"user_id":      userID,
		"event_type":   string(eventdomain.EventLoginSuccess),
		"created_at >": now.Add(-loginWindow),
	})
	if err != nil {
		return a.degrade(userID, err)
	}
	securityEvents, err := a.count(ctx, eventsTable, store.Filter{
		"user_id":      userID,
		"created_at >": now.Add(-eventWindow),
	})
	if err != nil {
		return a.degrade(userID, err)
	}
	lastLogin, err := a.lastSuccessfulLogin(ctx, userID)
	if err != nil {
		return a.degrade(userID, err)
	}

	return SessionSecurityMetrics{
		ActiveSessions:      activeSessions,
		FailedLogins24h:     failedLogins,
		SuccessfulLogins24h: successfulLogins,
		SecurityEvents7d:    securityEvents,
		RiskScore:           risk.UserRisk(activeSessions, failedLogins, securityEvents),
		LastSuccessfulLogin: lastLogin,
	}
}

func (a *Aggregator) count(ctx context.Context, table string, filter store.Filter) (int, error) {
	rows, err := a.store.Select(ctx, table, []string{"id"}, filter, nil)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (a *Aggregator) lastSuccessfulLogin(ctx context.Context, userID string) (*time.Time, error) {
	rows, err := a.store.Select(ctx, eventsTable, []string{"created_at"}, store.Filter{
		"user_id":    userID,
		"event_type": string(eventdomain.EventLoginSuccess),
	}, &store.SelectOptions{OrderBy: "created_at", Desc: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if t, ok := rows[0]["created_at"].(time.Time); ok {
		t = t.UTC()
		return &t, nil
	}
	return nil, nil
}

func (a *Aggregator) degrade(userID string, err error) SessionSecurityMetrics {
	log.Printf("metrics: read failed for %q, returning zero metrics: %v", userID, err)
	return SessionSecurityMetrics{}
}
