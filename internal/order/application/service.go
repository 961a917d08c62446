package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/cart"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/domain"
)

// Receipt is what the user is told after a successful finalize.
type Receipt struct {
	OrderID int64
	Total   decimal.Decimal
}

type Service struct {
	log     *slog.Logger
	repo    OrderRepository
	cart    Cart
	catalog Resolver
}

func NewService(log *slog.Logger, repo OrderRepository, c Cart, catalog Resolver) *Service {
	return &Service{log: log, repo: repo, cart: c, catalog: catalog}
}

// Finalize converts the session's cart into a durable order. The durable
// write happens inside the cart checkout, so the cart is cleared only after
// the write is confirmed; on a storage error the cart survives for a retry.
// An empty cart fails with cart.ErrEmptyOrder and writes nothing.
func (s *Service) Finalize(ctx context.Context, sessionID string) (Receipt, error) {
	var receipt Receipt
	err := s.cart.Checkout(sessionID, func(lines []cart.Line) error {
		items := make([]domain.LineItem, 0, len(lines))
		for _, l := range lines {
			it, err := s.catalog.Resolve(l.Name)
			if err != nil {
				// Cart lines hold canonical names, so this only fires if
				// the catalog changed under a live session.
				return fmt.Errorf("resolve %q: %w", l.Name, err)
			}
			items = append(items, domain.LineItem{
				ItemName:  it.Name,
				Quantity:  l.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}

		o := domain.NewOrder(items)
		id, err := s.repo.CreateOrder(ctx, o)
		if err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		receipt = Receipt{OrderID: id, Total: o.Total}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	s.log.Info("order finalized", "session_id", sessionID, "order_id", receipt.OrderID, "total", receipt.Total)
	return receipt, nil
}

// Track looks up the fulfillment status for a user-supplied order id. The id
// arrives as free text from the NLU layer; anything that does not parse as a
// positive integer is treated as an unknown order, not a fault.
func (s *Service) Track(ctx context.Context, rawID string) (domain.Status, error) {
	id, err := parseOrderID(rawID)
	if err != nil {
		return "", domain.ErrOrderNotFound
	}
	return s.repo.GetStatus(ctx, id)
}

func parseOrderID(raw string) (int64, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("non-positive order id %d", id)
	}
	return id, nil
}
