package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alignhq.org/internal/httpapi"
	"alignhq.org/internal/limits"
	"alignhq.org/internal/obs"
	"alignhq.org/internal/okr"
	"alignhq.org/internal/store/pg"
	"alignhq.org/internal/stream"
)

var version = "0.3.1"

func main() {
	obs.Init()

	// Postgres when a DSN is configured, in-memory otherwise. The readiness
	// probe pings whichever database is in use.
	var (
		store okr.Store
		probe httpapi.ReadyProbe
	)
	if dsn := os.Getenv("ALIGN_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Println("ALIGN_PG_DSN not set, using in-memory store")
		store = okr.NewMemStore()
	}

	plan := os.Getenv("ALIGN_PLAN")
	if plan == "" {
		plan = "free"
	}

	events := stream.New()
	engine := okr.NewEngine(store,
		okr.WithLimitChecker(limits.NewTierChecker(limits.StaticPlan(plan))),
		okr.WithEmitter(events),
	)

	api := httpapi.New(engine, probe, version, httpapi.WithStream(events))

	handler := httpapi.Logging(api.Handler())
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.RateLimit(handler, 50, 25)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting alignhq-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
