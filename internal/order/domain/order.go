package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state recorded in order_tracking. Orders start
// placed; the fulfillment side advances them from there.
type Status string

const (
	StatusPlaced         Status = "placed"
	StatusInProgress     Status = "in progress"
	StatusOutForDelivery Status = "out for delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var ErrOrderNotFound = errors.New("order not found")

type LineItem struct {
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is immutable after finalization except for the tracking status. The
// id is assigned by storage at insert time and never reused.
type Order struct {
	ID        int64
	Items     []LineItem
	Total     decimal.Decimal
	Status    Status
	CreatedAt time.Time
}

func NewOrder(items []LineItem) Order {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return Order{
		Items:     items,
		Total:     total,
		Status:    StatusPlaced,
		CreatedAt: time.Now().UTC(),
	}
}
