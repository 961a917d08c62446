package application

import (
	"context"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/cart"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/catalog"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/domain"
)

type OrderRepository interface {
	// CreateOrder persists the order, its line items, the tracking row and
	// the OrderPlaced outbox event in one transaction, returning the
	// storage-assigned order id.
	CreateOrder(ctx context.Context, o domain.Order) (int64, error)
	GetStatus(ctx context.Context, orderID int64) (domain.Status, error)
}

type Cart interface {
	Checkout(sessionID string, persist func([]cart.Line) error) error
}

type Resolver interface {
	Resolve(rawName string) (catalog.Item, error)
}
