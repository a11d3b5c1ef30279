// Package domain holds the immutable security-event record and its closed
// type and severity sets.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// EventType is the closed set of auditable security events.
type EventType string

const (
	EventLoginSuccess           EventType = "login_success"
	EventLoginFailed            EventType = "login_failed"
	EventLogout                 EventType = "logout"
	EventPasswordChanged        EventType = "password_changed"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"
	EventAPIKeyCreated          EventType = "api_key_created"
	EventAPIKeyRevoked          EventType = "api_key_revoked"
	EventSuspiciousActivity     EventType = "suspicious_activity"
	EventRateLimitExceeded      EventType = "rate_limit_exceeded"
	EventOAuthLogin             EventType = "oauth_login"
	EventSessionExpired         EventType = "session_expired"
	EventInvalidToken           EventType = "invalid_token"
)

var validTypes = map[EventType]bool{
	EventLoginSuccess:           true,
	EventLoginFailed:            true,
	EventLogout:                 true,
	EventPasswordChanged:        true,
	EventPasswordResetRequested: true,
	EventPasswordResetCompleted: true,
	EventAPIKeyCreated:          true,
	EventAPIKeyRevoked:          true,
	EventSuspiciousActivity:     true,
	EventRateLimitExceeded:      true,
	EventOAuthLogin:             true,
	EventSessionExpired:         true,
	EventInvalidToken:           true,
}

// Severity classifies an event's urgency.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var validSeverities = map[Severity]bool{
	SeverityInfo:     true,
	SeverityWarning:  true,
	SeverityError:    true,
	SeverityCritical: true,
}

// DefaultCategory is the event_category applied when none is given.
const DefaultCategory = "authentication"

// ErrRiskScoreOutOfRange is returned for risk scores outside [0,100].
var ErrRiskScoreOutOfRange = errors.New("risk score must be in [0,100]")

// SecurityEvent is one append-only audit record. There is no update or
// delete path for these rows anywhere in the system.
type SecurityEvent struct {
	ID            string
	UserID        string // empty when the event has no account
	EventType     EventType
	EventCategory string
	Severity      Severity
	IPAddress     string
	UserAgent     string
	Details       map[string]any
	RiskScore     int
	IsBlocked     bool
	CreatedAt     time.Time
}

// Validate checks the closed sets and the risk score range.
func (e *SecurityEvent) Validate() error {
	if !validTypes[e.EventType] {
		return fmt.Errorf("unknown event type %q", e.EventType)
	}
	if !validSeverities[e.Severity] {
		return fmt.Errorf("unknown severity %q", e.Severity)
	}
	if e.RiskScore < 0 || e.RiskScore > 100 {
		return ErrRiskScoreOutOfRange
	}
	return nil
}
