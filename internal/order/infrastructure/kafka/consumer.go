package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/domain"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/idempotency"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/tracing"
)

type StatusMarker interface {
	MarkStatus(ctx context.Context, orderID int64, status domain.Status) error
}

// Consumer drives the fulfillment side: it consumes OrderPlaced events and
// moves the freshly placed order into "in progress".
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	repo   StatusMarker
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, repo StatusMarker, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		repo:   repo,
		idem:   idem,
		tracer: otel.Tracer("fulfillment-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if c.idem != nil {
			key := c.idem.OffsetKey(msg.Topic, msg.Partition, msg.Offset)
			seen, err := c.idem.Seen(ctx, key)
			if err != nil {
				c.log.Error("idempotency check failed", "err", err)
				continue
			}
			if seen {
				c.log.Info("duplicate message skipped", "key", key)
				_ = c.reader.CommitMessages(ctx, msg)
				continue
			}
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderPlaced")

		var event domain.OrderPlaced
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("unmarshal failed", "err", err)
			span.End()
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.repo.MarkStatus(msgCtx, event.OrderID, domain.StatusInProgress); err != nil {
			c.log.Error("mark in progress failed", "order_id", event.OrderID, "err", err)
		} else {
			c.log.Info("order moved to in progress", "order_id", event.OrderID)
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}
