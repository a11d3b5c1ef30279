// Package securityevent appends best-effort audit records to the
// security_events table. Persistence failures here are logged and swallowed;
// they must never abort the operation that produced the event.
package securityevent

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"travel-planner/backend/internal/securityevent/domain"
	sessiondomain "travel-planner/backend/internal/session/domain"
	"travel-planner/backend/internal/store"
	"travel-planner/backend/internal/telemetry"
)

// Table is the backing table for security events.
const Table = "security_events"

// Event carries the caller-intended values for one audit record.
// Zero Severity means info; zero Category means authentication.
type Event struct {
	Type      domain.EventType
	UserID    string
	IP        string
	UserAgent string
	Details   map[string]any
	RiskScore int
	Severity  domain.Severity
	IsBlocked bool
}

// Recorder records security events. Implementations are best-effort: Record
// never fails the caller, and the returned event reflects the caller's
// intended values whether or not persistence succeeded. A nil return means
// the event itself was invalid (a programming error, logged internally).
type Recorder interface {
	Record(ctx context.Context, ev Event) *domain.SecurityEvent
}

// Logger implements Recorder over the store, optionally mirroring events to
// an observability sink.
type Logger struct {
	store   store.Store
	emitter telemetry.EventEmitter
}

// NewLogger returns a Recorder that persists to st and mirrors to emitter.
// emitter may be nil; events are then only persisted.
func NewLogger(st store.Store, emitter telemetry.EventEmitter) *Logger {
	return &Logger{store: st, emitter: emitter}
}

// Record validates and writes one append-only event row. A store failure is
// logged and swallowed; the built event is returned regardless so callers can
// carry on. Invalid type/severity/score returns nil after an internal log.
func (l *Logger) Record(ctx context.Context, ev Event) *domain.SecurityEvent {
	severity := ev.Severity
	if severity == "" {
		severity = domain.SeverityInfo
	}
	details := ev.Details
	if details == nil {
		details = map[string]any{}
	}
	event := &domain.SecurityEvent{
		ID:            uuid.New().String(),
		UserID:        ev.UserID,
		EventType:     ev.Type,
		EventCategory: domain.DefaultCategory,
		Severity:      severity,
		IPAddress:     sanitizeEventIP(ev.IP),
		UserAgent:     sessiondomain.SanitizeUserAgent(ev.UserAgent),
		Details:       details,
		RiskScore:     ev.RiskScore,
		IsBlocked:     ev.IsBlocked,
		CreatedAt:     time.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		log.Printf("securityevent: dropping invalid event %s: %v", ev.Type, err)
		return nil
	}

	if l.store != nil {
		if _, err := l.store.Insert(ctx, Table, []store.Row{rowFromEvent(event)}); err != nil {
			log.Printf("securityevent: failed to persist %s for user %q: %v", event.EventType, event.UserID, err)
		}
	}
	telemetry.EmitAsync(l.emitter, ctx, event)
	return event
}

// sanitizeEventIP strips null bytes and truncates. Hostile content is kept:
// the audit trail is exactly where an attacker-supplied address belongs.
func sanitizeEventIP(ip string) string {
	ip = strings.TrimSpace(strings.ReplaceAll(ip, "\x00", ""))
	if len(ip) > 45 {
		ip = ip[:45]
	}
	return ip
}

// rowFromEvent maps the event to its storage row. user_id is NULL when absent.
func rowFromEvent(e *domain.SecurityEvent) store.Row {
	var userID any
	if e.UserID != "" {
		userID = e.UserID
	}
	var ip any
	if e.IPAddress != "" {
		ip = e.IPAddress
	}
	var ua any
	if e.UserAgent != "" {
		ua = e.UserAgent
	}
	return store.Row{
		"id":             e.ID,
		"user_id":        userID,
		"event_type":     string(e.EventType),
		"event_category": e.EventCategory,
		"severity":       string(e.Severity),
		"ip_address":     ip,
		"user_agent":     ua,
		"details":        e.Details,
		"risk_score":     e.RiskScore,
		"is_blocked":     e.IsBlocked,
		"created_at":     e.CreatedAt,
	}
}
