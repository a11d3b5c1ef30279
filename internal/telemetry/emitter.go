// Package telemetry defines the best-effort event mirror used alongside the
// durable security-event trail.
package telemetry

import (
	"context"
	"log"
	"time"

	eventdomain "travel-planner/backend/internal/securityevent/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait before shutting down providers so
// in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EventEmitter mirrors security events to an observability sink (e.g. OTel
// logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *eventdomain.SecurityEvent) error
}

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not
// blocked. Errors are logged. emitter and event may be nil; EmitAsync then
// returns immediately without starting a goroutine.
//
// The goroutine uses context.Background() with emitTimeout so request
// cancellation does not abort an in-flight emit.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *eventdomain.SecurityEvent) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}
