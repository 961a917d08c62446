package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store marks units of work as seen with a bounded TTL, backed by redis SETNX.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// OffsetKey identifies one consumed Kafka message.
func (s *Store) OffsetKey(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// WebhookKey identifies one NLU webhook delivery by its response id, so a
// retried delivery of the same turn is not re-applied.
func (s *Store) WebhookKey(responseID string) string {
	return fmt.Sprintf("idem:webhook:%s", responseID)
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Forget releases a key so the same unit of work may be retried, used when
// the guarded operation failed after the key was claimed.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
