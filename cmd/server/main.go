package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"afmcheck/internal/platform/auth"
	"afmcheck/internal/platform/config"
	"afmcheck/internal/platform/events"
	"afmcheck/internal/platform/httpserver"
	"afmcheck/internal/platform/logger"
	"afmcheck/internal/platform/postgres"
	"afmcheck/internal/platform/redis"
	httptransport "afmcheck/internal/transport/http"
	"afmcheck/internal/verify/cache"
	"afmcheck/internal/verify/handler"
	"afmcheck/internal/verify/metrics"
	"afmcheck/internal/verify/ratelimit"
	"afmcheck/internal/verify/scraper"
	"afmcheck/internal/verify/service"
	"afmcheck/internal/verify/store"
	"afmcheck/internal/verify/vies"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(os.Getenv("DEBUG") == "true")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	records := store.NewPostgresRecordStore(db)
	audits := store.NewPostgresAuditStore(db)

	recordCache, err := cache.New(records)
	if err != nil {
		log.Error("cache setup failed", "error", err)
		os.Exit(1)
	}
	limiter, err := ratelimit.New(audits, ratelimit.WithLogger(log))
	if err != nil {
		log.Error("rate limiter setup failed", "error", err)
		os.Exit(1)
	}

	registryOpts := []vies.Option{vies.WithLogger(log)}
	if cfg.RegistryURL != "" {
		registryOpts = append(registryOpts, vies.WithBaseURL(cfg.RegistryURL))
	}
	registry := vies.New(registryOpts...)

	m := metrics.New()

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
	}

	if cfg.FallbackEnabled {
		engine, err := scraper.New(scraper.NewChromeLauncher(), cfg.SearchPageURL,
			scraper.WithLogger(log),
			scraper.WithMaxSessions(cfg.MaxScraperSession),
		)
		if err != nil {
			log.Error("scraper setup failed", "error", err)
			os.Exit(1)
		}
		svcOpts = append(svcOpts, service.WithFallback(engine))

		if rdb != nil {
			svcOpts = append(svcOpts, service.WithCooldown(scraper.NewCooldown(rdb.Client, log)))
		}
	}

	publisher, err := events.New(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("event publisher setup failed", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close()
		svcOpts = append(svcOpts, service.WithEvents(publisher))
	}

	svc, err := service.New(recordCache, limiter, registry, audits, svcOpts...)
	if err != nil {
		log.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Lookups:   handler.New(svc, log),
		Validator: auth.NewJWTService(cfg.JWTSigningKey, "afmcheck"),
		Logger:    log,
		DB:        db,
		Redis:     rdb,
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
