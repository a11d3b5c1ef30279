package otel

import (
	"context"
	"testing"
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"

	eventdomain "travel-planner/backend/internal/securityevent/domain"
)

func TestNewEventEmitter_NilProvider(t *testing.T) {
	emitter := NewEventEmitter(nil)
	if emitter == nil {
		t.Fatal("emitter should not be nil")
	}
	if err := emitter.Emit(context.Background(), &eventdomain.SecurityEvent{}); err != nil {
		t.Errorf("no-op emit: %v", err)
	}
}

func TestOtelEmitter_Emit(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	emitter := NewEventEmitter(provider)

	event := &eventdomain.SecurityEvent{
		ID:            "ev-1",
		UserID:        "u1",
		EventType:     eventdomain.EventLoginSuccess,
		EventCategory: eventdomain.DefaultCategory,
		Severity:      eventdomain.SeverityInfo,
		IPAddress:     "203.0.113.9",
		RiskScore:     5,
		CreatedAt:     time.Now().UTC(),
	}
	if err := emitter.Emit(context.Background(), event); err != nil {
		t.Errorf("Emit: %v", err)
	}
	if err := emitter.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit nil event: %v", err)
	}
}
