package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/catalog"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/domain"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/outbox"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/tracing"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// CreateOrder inserts the order, its line items, the tracking row and the
// OrderPlaced outbox event in a single transaction. The order id comes from
// the orders bigserial, so ids are monotonic and never reused even when the
// transaction rolls back.
func (r *Repository) CreateOrder(ctx context.Context, o domain.Order) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (total, created_at) VALUES ($1,$2) RETURNING order_id`,
		o.Total, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for pos, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, item_name, quantity, unit_price, position)
			VALUES ($1,$2,$3,$4,$5)`,
			id, item.ItemName, item.Quantity, item.UnitPrice, pos)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_tracking (order_id, status, updated_at) VALUES ($1,$2,$3)`,
		id, o.Status, o.CreatedAt,
	)
	if err != nil {
		return 0, err
	}

	event := domain.OrderPlaced{OrderID: id, Total: o.Total, Items: o.Items}
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}
	headers := map[string]string{"source": "webhook-service"}
	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"order", strconv.FormatInt(id, 10), domain.EventOrderPlaced, payload, headers, tracing.Traceparent(ctx),
	)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetStatus(ctx context.Context, orderID int64) (domain.Status, error) {
	var status domain.Status
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM order_tracking WHERE order_id=$1`, orderID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// MarkStatus advances the tracking status; used by the fulfillment worker.
func (r *Repository) MarkStatus(ctx context.Context, orderID int64, status domain.Status) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE order_tracking SET status=$2, updated_at=$3 WHERE order_id=$1`,
		orderID, status, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// ListCatalogItems loads the menu for the in-memory catalog.
func (r *Repository) ListCatalogItems(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, price FROM food_items ORDER BY item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var it catalog.Item
		if err := rows.Scan(&it.Name, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("food_items table is empty")
	}
	return items, nil
}

// OutboxStore leases and settles outbox rows for the relay.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		var headers map[string]string
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload, &headers, &event.Traceparent, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Headers = headers
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval WHERE id = ANY($3)`, relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + $1::interval WHERE id = ANY($2) AND relay_id=$3`, lease.String(), ids, relayID)
	return err
}
