package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	eventdomain "travel-planner/backend/internal/securityevent/domain"
	"travel-planner/backend/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that mirrors security events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("travel-planner.security")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *eventdomain.SecurityEvent) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the security event to an OTel log record and emits it.
// Best-effort; the durable copy lives in the security_events table.
func (e *otelEmitter) Emit(ctx context.Context, event *eventdomain.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetBody(otellog.StringValue(string(event.EventType)))
	rec.SetSeverityText(string(event.Severity))
	rec.AddAttributes(otellog.Int("risk_score", event.RiskScore))
	if event.ID != "" {
		rec.AddAttributes(otellog.String("event_id", event.ID))
	}
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.EventCategory != "" {
		rec.AddAttributes(otellog.String("event_category", event.EventCategory))
	}
	if event.IPAddress != "" {
		rec.AddAttributes(otellog.String("ip_address", event.IPAddress))
	}
	if event.IsBlocked {
		rec.AddAttributes(otellog.Bool("is_blocked", true))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
