package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kiwari-pos/tabs/internal/config"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/events"
	"github.com/kiwari-pos/tabs/internal/router"
	"github.com/kiwari-pos/tabs/internal/service"
	"github.com/kiwari-pos/tabs/internal/ws"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	hub := ws.NewHub()
	go hub.Run()

	notifiers := events.Fanout{events.NewHubNotifier(hub)}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			log.Printf("WARN: NATS unavailable, events stay local: %v", err)
		} else {
			defer pub.Close()
			notifiers = append(notifiers, events.NewBusNotifier(pub))
			log.Printf("Publishing events to NATS at %s", cfg.NATSURL)
		}
	}

	core := router.NewCore(cfg, pool, notifiers)
	r := router.New(cfg, core, database.New(pool), hub)

	scheduler, err := startReconciler(ctx, cfg.ReconcileSchedule, service.NewReconciler(core))
	if err != nil {
		log.Fatalf("Invalid RECONCILE_SCHEDULE %q: %v", cfg.ReconcileSchedule, err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: graceful shutdown: %v", err)
	}
}

// startReconciler runs the totals repair job on schedule. An empty schedule
// disables it.
func startReconciler(ctx context.Context, schedule string, rec *service.Reconciler) (*cron.Cron, error) {
	if schedule == "" {
		log.Println("Reconcile job disabled")
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		fixed, err := rec.Fix(ctx)
		if err != nil {
			log.Printf("ERROR: reconcile: %v", err)
			return
		}
		for _, d := range fixed {
			log.Printf("WARN: reconciled %s %s (%s): stored %s, computed %s",
				d.Kind, d.ID, d.Label, d.Stored.StringFixed(2), d.Computed.StringFixed(2))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Printf("Reconcile job scheduled: %s", schedule)
	return c, nil
}
