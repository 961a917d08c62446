package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/cart"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/catalog"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/application"
	"github.com/aryann1001/Food-Delivery-ChatBot/internal/order/domain"
	"github.com/aryann1001/Food-Delivery-ChatBot/pkg/idempotency"
)

const (
	fallbackReply = "Sorry, I didn't get that. You can order food or track an existing order."
	clarifyReply  = "Sorry I didn't understand. Can you please specify food items and quantities clearly?"
	retryReply    = "Sorry, I couldn't process your order due to a backend error. Please try again in a moment."
	noCartReply   = "I'm having trouble finding your order. Sorry! Can you place a new order please?"
)

type Handler struct {
	log    *slog.Logger
	agg    *cart.Aggregator
	orders *application.Service
	idem   *idempotency.Store // optional; nil disables webhook dedupe
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, agg *cart.Aggregator, orders *application.Service, idem *idempotency.Store) *Handler {
	return &Handler{
		log:    log,
		agg:    agg,
		orders: orders,
		idem:   idem,
		tracer: otel.Tracer("webhook-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handle)
	return r
}

// handle processes one conversational turn. Every path, including malformed
// payloads and storage failures, answers 200 with conversational text: the
// chat channel cannot render a protocol failure, only words.
func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandleTurn")
	defer span.End()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error("malformed webhook payload", "err", err)
		h.reply(w, Response{FulfillmentText: fallbackReply})
		return
	}

	sessionID := req.SessionID()
	if sessionID == "" {
		h.log.Error("webhook payload without session id", "response_id", req.ResponseID)
		h.reply(w, Response{FulfillmentText: fallbackReply})
		return
	}

	intent := ParseIntent(req.QueryResult.Intent.DisplayName)
	h.log.Info("turn received", "session_id", sessionID, "intent", intent.String(), "display_name", req.QueryResult.Intent.DisplayName)

	var resp Response
	switch intent {
	case IntentAddItem:
		resp = h.addItems(sessionID, &req)
	case IntentRemoveItem:
		resp = h.removeItems(sessionID, &req)
	case IntentCompleteOrder:
		resp = h.completeOrder(ctx, sessionID, &req)
	case IntentCancelOrder:
		resp = h.cancelOrder(sessionID, &req)
	case IntentTrackOrder:
		resp = h.trackOrder(ctx, &req)
	default:
		resp = Response{FulfillmentText: fallbackReply}
	}
	h.reply(w, resp)
}

func (h *Handler) addItems(sessionID string, req *Request) Response {
	entries, ok := itemEntries(req.QueryResult.Parameters)
	if !ok {
		return Response{FulfillmentText: clarifyReply}
	}

	res := h.agg.AddItems(sessionID, entries)

	var parts []string
	if len(res.Rejected) > 0 {
		parts = append(parts, fmt.Sprintf("Sorry, I couldn't find %s on our menu.", strings.Join(res.Rejected, ", ")))
	}
	if lines := h.agg.Snapshot(sessionID); len(lines) > 0 {
		parts = append(parts, fmt.Sprintf("So far you have: %s. Do you need anything else?", formatLines(lines)))
	} else {
		parts = append(parts, "Can you rephrase that?")
	}
	return Response{FulfillmentText: strings.Join(parts, " ")}
}

func (h *Handler) removeItems(sessionID string, req *Request) Response {
	entries, ok := itemEntries(req.QueryResult.Parameters)
	if !ok {
		return Response{FulfillmentText: clarifyReply}
	}

	res := h.agg.RemoveItems(sessionID, entries)

	var parts []string
	if len(res.Accepted) > 0 {
		parts = append(parts, fmt.Sprintf("Removed %s from your order!", strings.Join(itemNames(res.Accepted), ", ")))
	}
	if len(res.Rejected) > 0 {
		parts = append(parts, fmt.Sprintf("Your current order does not have %s.", strings.Join(res.Rejected, ", ")))
	}
	if lines := h.agg.Snapshot(sessionID); len(lines) > 0 {
		parts = append(parts, fmt.Sprintf("Here is what is left in your order: %s.", formatLines(lines)))
	} else {
		parts = append(parts, "Your order is empty!")
	}
	return Response{FulfillmentText: strings.Join(parts, " ")}
}

func (h *Handler) completeOrder(ctx context.Context, sessionID string, req *Request) Response {
	// Finalize is not replay-safe, so retried deliveries of the same turn
	// are claimed up front and released again if the write fails.
	var claimed string
	if h.idem != nil && req.ResponseID != "" {
		key := h.idem.WebhookKey(req.ResponseID)
		seen, err := h.idem.Seen(ctx, key)
		if err != nil {
			h.log.Error("webhook dedupe check failed", "err", err)
		} else if seen {
			h.log.Info("duplicate webhook delivery skipped", "response_id", req.ResponseID)
			return Response{FulfillmentText: "I'm already placing that order. One moment!"}
		} else {
			claimed = key
		}
	}

	receipt, err := h.orders.Finalize(ctx, sessionID)
	switch {
	case errors.Is(err, cart.ErrEmptyOrder):
		return Response{FulfillmentText: noCartReply}
	case err != nil:
		h.log.Error("finalize failed", "session_id", sessionID, "err", err)
		if claimed != "" {
			if ferr := h.idem.Forget(ctx, claimed); ferr != nil {
				h.log.Error("webhook dedupe release failed", "err", ferr)
			}
		}
		return Response{FulfillmentText: retryReply}
	}

	text := fmt.Sprintf(
		"Awesome. We have placed your order. Here is your order id # %d. Your order total is %s which you can pay at the time of delivery!",
		receipt.OrderID, receipt.Total.StringFixed(2),
	)
	return Response{FulfillmentText: text, OutputContexts: resetOrderContext(req)}
}

func (h *Handler) cancelOrder(sessionID string, req *Request) Response {
	h.agg.Clear(sessionID)
	return Response{
		FulfillmentText: "No problem, I have cancelled your order. Come back any time you are hungry!",
		OutputContexts:  resetOrderContext(req),
	}
}

func (h *Handler) trackOrder(ctx context.Context, req *Request) Response {
	raw := numberText(req.QueryResult.Parameters, "number")
	if raw == "" {
		return Response{FulfillmentText: "Please tell me your order id and I will look it up."}
	}

	status, err := h.orders.Track(ctx, raw)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return Response{FulfillmentText: fmt.Sprintf("No order found with order id: %s", raw)}
	case err != nil:
		h.log.Error("track failed", "order_id", raw, "err", err)
		return Response{FulfillmentText: "Sorry, I couldn't look that up right now. Please try again in a moment."}
	}
	return Response{FulfillmentText: fmt.Sprintf("The order status for order id: %s is: %s", raw, status)}
}

func (h *Handler) reply(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("encode response failed", "err", err)
	}
}

// itemEntries zips the food-item and number entities. A missing number list
// means quantity one each; a length mismatch means the extraction is not
// trustworthy and the user is asked to restate the turn.
func itemEntries(params map[string]any) ([]cart.Entry, bool) {
	names := stringList(params, "food-item")
	if len(names) == 0 {
		return nil, false
	}
	quantities := numberList(params, "number")
	if len(quantities) == 0 {
		quantities = make([]float64, len(names))
		for i := range quantities {
			quantities[i] = 1
		}
	}
	if len(quantities) != len(names) {
		return nil, false
	}

	entries := make([]cart.Entry, 0, len(names))
	for i, name := range names {
		entries = append(entries, cart.Entry{Name: name, Quantity: quantities[i]})
	}
	return entries, true
}

// resetOrderContext expires the agent's ongoing-order context so its
// dialogue state matches the now-empty cart.
func resetOrderContext(req *Request) []OutputContext {
	path := req.sessionPath()
	if path == "" {
		return nil
	}
	return []OutputContext{{Name: path + "/contexts/ongoing-order", LifespanCount: 0}}
}

func formatLines(lines []cart.Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%d %s", l.Quantity, l.Name))
	}
	return strings.Join(parts, ", ")
}

func itemNames(items []catalog.Item) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names
}
