package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"beacon/internal/cache"
	"beacon/internal/ingest"
	"beacon/internal/platform/config"
	"beacon/internal/platform/db"
	"beacon/internal/platform/httpserver"
	"beacon/internal/platform/logger"
	"beacon/internal/platform/metrics"
	platformredis "beacon/internal/platform/redis"
	"beacon/internal/project"
	"beacon/internal/report"
	"beacon/internal/signing"
	"beacon/internal/telemetry"
	telemetrymemory "beacon/internal/telemetry/store/memory"
	telemetrypostgres "beacon/internal/telemetry/store/postgres"
	httpapi "beacon/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	m := metrics.New()

	checks := make(map[string]httpapi.HealthChecker)

	var events telemetry.Store
	var projects project.Store
	if cfg.PostgresDSN != "" {
		pool, err := db.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()

		eventStore := telemetrypostgres.New(pool)
		projectStore := project.NewPostgres(pool)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := eventStore.EnsureSchema(ctx); err != nil {
			cancel()
			log.Error("telemetry schema setup failed", "error", err.Error())
			os.Exit(1)
		}
		if err := projectStore.EnsureSchema(ctx); err != nil {
			cancel()
			log.Error("project schema setup failed", "error", err.Error())
			os.Exit(1)
		}
		cancel()
		events = eventStore
		projects = projectStore
	} else {
		// Dev mode: everything in memory, nothing survives a restart.
		log.Warn("BEACON_POSTGRES_DSN not set, using in-memory stores")
		events = telemetrymemory.New()
		projects = project.NewMemoryStore()
	}

	var resultCache cache.Cache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		resultCache = cache.NewRedis(redisClient.Client)
		checks["redis"] = redisClient
	} else {
		log.Warn("BEACON_REDIS_URL not set, reports are computed on every request")
	}

	verifier := signing.New(projects)
	ingestSvc := ingest.NewService(verifier, events, log, m)
	reports := report.NewService(events, projects)
	cachedReports := report.NewCached(reports, resultCache, log, m, cfg.ReportTTL, cfg.HistoricMatrixTTL)

	handler := httpapi.New(ingestSvc, cachedReports, log)
	router := httpapi.NewRouter(handler, log, checks)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting beacon", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
