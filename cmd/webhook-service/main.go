package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/cart"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/catalog"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/config"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/db"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/application"
	orderkafka "github.com/aryann1001/Food-Delivery-ChatBot/internal/order/infrastructure/kafka"
	orderpg "github.com/aryann1001/Food-Delivery-ChatBot/internal/order/infrastructure/postgres"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/webhook"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/idempotency"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/logging"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/outbox"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/shutdown"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "webhook-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	// Postgres setup. Storage being unreachable at startup is the one fault
	// allowed to halt the process.
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Apply(ctx, pool); err != nil {
		log.Error("schema apply failed", "err", err)
		os.Exit(1)
	}

	repo := orderpg.NewRepository(log, pool)

	items, err := repo.ListCatalogItems(ctx)
	if err != nil {
		log.Error("catalog load failed", "err", err)
		os.Exit(1)
	}
	cat := catalog.New(items)
	log.Info("catalog loaded", "items", cat.Len())

	// Kafka producer and outbox relay
	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	store := orderpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, store, dispatch, "webhook-relay-"+uuid.NewString())

	// Webhook delivery dedupe is optional; without redis every delivery is
	// processed, which matches the original service.
	var idem *idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, 24*time.Hour)
	}

	carts := cart.NewStore(log)
	agg := cart.NewAggregator(log, cat, carts)
	svc := application.NewService(log, repo, carts, cat)
	handler := webhook.NewHandler(log, agg, svc, idem)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go carts.RunJanitor(ctx, time.Minute, cfg.CartIdleTTL)

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("webhook-service shutdown complete")
}
