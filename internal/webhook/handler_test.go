package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/cart"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/catalog"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/application"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/domain"
)

type fakeRepo struct {
	createFunc    func(ctx context.Context, o domain.Order) (int64, error)
	getStatusFunc func(ctx context.Context, orderID int64) (domain.Status, error)
}

func (f *fakeRepo) CreateOrder(ctx context.Context, o domain.Order) (int64, error) {
	if f.createFunc != nil {
		return f.createFunc(ctx, o)
	}
	return 1, nil
}

func (f *fakeRepo) GetStatus(ctx context.Context, orderID int64) (domain.Status, error) {
	if f.getStatusFunc != nil {
		return f.getStatusFunc(ctx, orderID)
	}
	return "", domain.ErrOrderNotFound
}

type fixture struct {
	handler *Handler
	store   *cart.Store
}

func newFixture(repo *fakeRepo) fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.New([]catalog.Item{
		{Name: "Burger", UnitPrice: decimal.RequireFromString("5.00")},
		{Name: "Fries", UnitPrice: decimal.RequireFromString("2.00")},
	})
	store := cart.NewStore(log)
	agg := cart.NewAggregator(log, cat, store)
	svc := application.NewService(log, repo, store, cat)
	return fixture{handler: NewHandler(log, agg, svc, nil), store: store}
}

func turn(displayName string, params map[string]any) Request {
	return Request{
		ResponseID: "resp-1",
		Session:    "projects/eatery/agent/sessions/sess-1",
		QueryResult: QueryResult{
			Parameters: params,
			Intent:     IntentRef{DisplayName: displayName},
			OutputContexts: []OutputContext{
				{Name: "projects/eatery/agent/sessions/sess-1/contexts/ongoing-order", LifespanCount: 5},
			},
		},
	}
}

func post(t *testing.T, h *Handler, body any) (int, Response) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestHandle_AddItem(t *testing.T) {
	f := newFixture(&fakeRepo{})

	code, resp := post(t, f.handler, turn("order.add - context: ongoing-order", map[string]any{
		"food-item": []any{"burger"},
		"number":    []any{2.0},
	}))

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "So far you have: 2 Burger. Do you need anything else?", resp.FulfillmentText)
}

func TestHandle_AddItem_AccumulatesAcrossTurns(t *testing.T) {
	f := newFixture(&fakeRepo{})

	post(t, f.handler, turn("order.add - context: ongoing-order", map[string]any{
		"food-item": []any{"burger"}, "number": []any{2.0},
	}))
	_, resp := post(t, f.handler, turn("order.add - context: ongoing-order", map[string]any{
		"food-item": []any{"burger"}, "number": []any{1.0},
	}))

	assert.Equal(t, "So far you have: 3 Burger. Do you need anything else?", resp.FulfillmentText)
}

func TestHandle_AddItem_MisspelledAsksForClarification(t *testing.T) {
	f := newFixture(&fakeRepo{})

	_, resp := post(t, f.handler, turn("order.add - context: ongoing-order", map[string]any{
		"food-item": []any{"burgr"}, "number": []any{2.0},
	}))

	assert.Contains(t, resp.FulfillmentText, "couldn't find burgr")
	assert.Empty(t, f.store.Snapshot("sess-1"), "rejected entry must not touch the cart")
}

func TestHandle_AddItem_MissingEntities(t *testing.T) {
	f := newFixture(&fakeRepo{})

	_, resp := post(t, f.handler, turn("order.add - context: ongoing-order", map[string]any{}))
	assert.Equal(t, clarifyReply, resp.FulfillmentText)
}

func TestHandle_RemoveItem_NotPresent(t *testing.T) {
	f := newFixture(&fakeRepo{})
	f.store.Add("sess-1", "Burger", 1)

	_, resp := post(t, f.handler, turn("order.remove - context: ongoing-order", map[string]any{
		"food-item": []any{"fries"},
	}))

	assert.Contains(t, resp.FulfillmentText, "does not have fries")
	assert.Contains(t, resp.FulfillmentText, "left in your order: 1 Burger")
}

func TestHandle_RemoveItem_LastItemEmptiesOrder(t *testing.T) {
	f := newFixture(&fakeRepo{})
	f.store.Add("sess-1", "Fries", 1)

	_, resp := post(t, f.handler, turn("order.remove - context: ongoing-order", map[string]any{
		"food-item": []any{"fries"}, "number": []any{5.0},
	}))

	assert.Contains(t, resp.FulfillmentText, "Removed Fries")
	assert.Contains(t, resp.FulfillmentText, "Your order is empty!")
}

func TestHandle_CompleteOrder(t *testing.T) {
	repo := &fakeRepo{createFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		return 42, nil
	}}
	f := newFixture(repo)
	f.store.Add("sess-1", "Burger", 2)
	f.store.Add("sess-1", "Fries", 1)

	_, resp := post(t, f.handler, turn("order.complete - context: ongoing-order", nil))

	assert.Contains(t, resp.FulfillmentText, "order id # 42")
	assert.Contains(t, resp.FulfillmentText, "total is 12.00")
	require.Len(t, resp.OutputContexts, 1)
	assert.Equal(t, "projects/eatery/agent/sessions/sess-1/contexts/ongoing-order", resp.OutputContexts[0].Name)
	assert.Zero(t, resp.OutputContexts[0].LifespanCount)
	assert.Empty(t, f.store.Snapshot("sess-1"))
}

func TestHandle_CompleteOrder_EmptyCart(t *testing.T) {
	f := newFixture(&fakeRepo{})

	_, resp := post(t, f.handler, turn("order.complete - context: ongoing-order", nil))
	assert.Equal(t, noCartReply, resp.FulfillmentText)
}

func TestHandle_CompleteOrder_StorageFailureKeepsCart(t *testing.T) {
	repo := &fakeRepo{createFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		return 0, errors.New("connection refused")
	}}
	f := newFixture(repo)
	f.store.Add("sess-1", "Burger", 2)

	code, resp := post(t, f.handler, turn("order.complete - context: ongoing-order", nil))

	require.Equal(t, http.StatusOK, code, "storage failures are conversational, not protocol errors")
	assert.Equal(t, retryReply, resp.FulfillmentText)
	assert.Equal(t, []cart.Line{{Name: "Burger", Quantity: 2}}, f.store.Snapshot("sess-1"))
}

func TestHandle_CancelOrder(t *testing.T) {
	f := newFixture(&fakeRepo{})
	f.store.Add("sess-1", "Burger", 2)

	_, resp := post(t, f.handler, turn("order.cancel - context: ongoing-order", nil))

	assert.Contains(t, resp.FulfillmentText, "cancelled your order")
	require.Len(t, resp.OutputContexts, 1)
	assert.Empty(t, f.store.Snapshot("sess-1"))
}

func TestHandle_TrackOrder(t *testing.T) {
	repo := &fakeRepo{getStatusFunc: func(ctx context.Context, orderID int64) (domain.Status, error) {
		require.Equal(t, int64(42), orderID)
		return domain.StatusOutForDelivery, nil
	}}
	f := newFixture(repo)

	_, resp := post(t, f.handler, turn("track.order - context: ongoing-tracking", map[string]any{
		"number": 42.0,
	}))

	assert.Equal(t, "The order status for order id: 42 is: out for delivery", resp.FulfillmentText)
}

func TestHandle_TrackOrder_Unknown(t *testing.T) {
	f := newFixture(&fakeRepo{})

	_, resp := post(t, f.handler, turn("track.order - context: ongoing-tracking", map[string]any{
		"number": 999.0,
	}))

	assert.Equal(t, "No order found with order id: 999", resp.FulfillmentText)
}

func TestHandle_TrackOrder_MissingID(t *testing.T) {
	f := newFixture(&fakeRepo{})

	_, resp := post(t, f.handler, turn("track.order - context: ongoing-tracking", nil))
	assert.Contains(t, resp.FulfillmentText, "order id")
}

func TestHandle_UnknownIntentFallsBack(t *testing.T) {
	f := newFixture(&fakeRepo{})

	code, resp := post(t, f.handler, turn("new.order", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fallbackReply, resp.FulfillmentText)
}

func TestHandle_MalformedJSONFallsBack(t *testing.T) {
	f := newFixture(&fakeRepo{})

	code, resp := post(t, f.handler, "{not json")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fallbackReply, resp.FulfillmentText)
}

func TestHandle_MissingSessionFallsBack(t *testing.T) {
	f := newFixture(&fakeRepo{})

	req := turn("order.add - context: ongoing-order", map[string]any{"food-item": "burger"})
	req.Session = "garbage"
	req.QueryResult.OutputContexts = nil

	code, resp := post(t, f.handler, req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, fallbackReply, resp.FulfillmentText)
}
