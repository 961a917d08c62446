package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/config"
	orderkafka "github.com/aryann1001/Food-Delivery-ChatBot/internal/order/infrastructure/kafka"
	orderpg "github.com/aryann1001/Food-Delivery-ChatBot/internal/order/infrastructure/postgres"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/idempotency"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/logging"
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

	tp, err := tracing.Init(ctx, "fulfillment-worker", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := orderpg.NewRepository(log, pool)

	var idem *idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, 24*time.Hour)
	}

	consumer := orderkafka.NewConsumer(log, cfg.KafkaBrokers, cfg.OutboxTopic, cfg.ConsumerGroup, repo, idem)

	log.Info("fulfillment worker consuming", "topic", cfg.OutboxTopic, "group", cfg.ConsumerGroup)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("fulfillment-worker shutdown complete")
}
