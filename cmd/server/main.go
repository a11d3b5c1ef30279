// server wires the session security core and runs the periodic expired-session
// sweep. The request-serving transport (trip CRUD, auth handlers) lives in the
// surrounding platform and consumes this core as a library.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel-planner/backend/internal/config"
	"travel-planner/backend/internal/db"
	"travel-planner/backend/internal/securityevent"
	sessionservice "travel-planner/backend/internal/session/service"
	"travel-planner/backend/internal/store"
	"travel-planner/backend/internal/telemetry"
	telemetryotel "travel-planner/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "travel-planner-sessions", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	st := store.NewPostgres(conn)
	events := securityevent.NewLogger(st, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	manager := sessionservice.NewManager(st, events, providers.MeterProvider.Meter("travel-planner.sessions"), sessionservice.Config{
		SessionDuration:    cfg.SessionDuration(),
		MaxSessionsPerUser: cfg.MaxSessionsPerUser,
		RateLimitWindow:    cfg.RateLimitWindow(),
	})

	go runCleanupLoop(ctx, manager, cfg.CleanupInterval())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()
	// Give in-flight async event mirrors time to land before tearing down exporters.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("stopped")
}

// runCleanupLoop sweeps expired sessions on the configured interval until ctx
// is canceled. Each sweep is independent; a failing one returns 0 and the loop
// carries on.
func runCleanupLoop(ctx context.Context, manager *sessionservice.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("session cleanup loop running every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := manager.CleanupExpiredSessions(ctx); n > 0 {
				log.Printf("cleanup: terminated %d expired sessions", n)
			}
		}
	}
}
