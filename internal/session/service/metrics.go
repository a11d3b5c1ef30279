package service

import (
	"context"
	"log"

	otelmetric "go.opentelemetry.io/otel/metric"
)

// lifecycleMetrics holds the OTel counters for session state transitions.
// All fields may be nil (no meter configured); inc is nil-safe.
type lifecycleMetrics struct {
	created    otelmetric.Int64Counter
	evicted    otelmetric.Int64Counter
	expired    otelmetric.Int64Counter
	suspicious otelmetric.Int64Counter
}

func newLifecycleMetrics(meter otelmetric.Meter) lifecycleMetrics {
	if meter == nil {
		return lifecycleMetrics{}
	}
	var m lifecycleMetrics
	var err error
	if m.created, err = meter.Int64Counter("sessions_created_total",
		otelmetric.WithDescription("Sessions created")); err != nil {
		log.Printf("session: counter init: %v", err)
	}
	if m.evicted, err = meter.Int64Counter("sessions_evicted_total",
		otelmetric.WithDescription("Sessions evicted by the per-account cap")); err != nil {
		log.Printf("session: counter init: %v", err)
	}
	if m.expired, err = meter.Int64Counter("sessions_expired_total",
		otelmetric.WithDescription("Sessions terminated by expiry")); err != nil {
		log.Printf("session: counter init: %v", err)
	}
	if m.suspicious, err = meter.Int64Counter("suspicious_activity_total",
		otelmetric.WithDescription("Suspicious-activity events recorded during validation")); err != nil {
		log.Printf("session: counter init: %v", err)
	}
	return m
}

func (lifecycleMetrics) inc(ctx context.Context, c otelmetric.Int64Counter) {
	if c != nil {
		c.Add(ctx, 1)
	}
}
