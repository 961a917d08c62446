package cart

import (
	"log/slog"
	"math"

	"github.com/aryann1001/Food-Delivery-ChatBot/internal/catalog"
)

// maxQuantity bounds a single entry; the NLU layer's number extraction is
// heuristic and has produced phone numbers as quantities.
const maxQuantity = 1000

// Entry is one (raw name, quantity) pair as extracted by the NLU engine.
// Quantities arrive as floats from the "number" entity.
type Entry struct {
	Name     string
	Quantity float64
}

// Result reports per-entry outcomes of a batch add or remove. Good entries
// succeed even when others are rejected.
type Result struct {
	Accepted []catalog.Item
	Rejected []string
}

// Aggregator applies conversational add/remove turns to the session store,
// resolving raw item names against the catalog first.
type Aggregator struct {
	log     *slog.Logger
	catalog *catalog.Catalog
	store   *Store
}

func NewAggregator(log *slog.Logger, cat *catalog.Catalog, store *Store) *Aggregator {
	return &Aggregator{log: log, catalog: cat, store: store}
}

// AddItems resolves and validates each entry, accumulating quantities for
// already-present items. Unresolvable names and non-positive or fractional
// quantities reject that entry only.
func (a *Aggregator) AddItems(sessionID string, entries []Entry) Result {
	var res Result
	for _, e := range entries {
		item, err := a.catalog.Resolve(e.Name)
		if err != nil {
			a.log.Info("add rejected", "session_id", sessionID, "item", e.Name, "err", err)
			res.Rejected = append(res.Rejected, e.Name)
			continue
		}
		qty, ok := wholeQuantity(e.Quantity)
		if !ok {
			a.log.Info("add rejected", "session_id", sessionID, "item", e.Name, "quantity", e.Quantity)
			res.Rejected = append(res.Rejected, e.Name)
			continue
		}
		a.store.Add(sessionID, item.Name, qty)
		res.Accepted = append(res.Accepted, item)
	}
	return res
}

// RemoveItems decrements quantities, floored at zero. Entries that do not
// resolve, or resolve to an item not in the cart, are rejected without
// aborting the rest of the batch.
func (a *Aggregator) RemoveItems(sessionID string, entries []Entry) Result {
	var res Result
	for _, e := range entries {
		item, err := a.catalog.Resolve(e.Name)
		if err != nil {
			res.Rejected = append(res.Rejected, e.Name)
			continue
		}
		qty := maxQuantity // no quantity means "all of it"
		if e.Quantity != 0 {
			var ok bool
			if qty, ok = wholeQuantity(e.Quantity); !ok {
				res.Rejected = append(res.Rejected, e.Name)
				continue
			}
		}
		if !a.store.Remove(sessionID, item.Name, qty) {
			res.Rejected = append(res.Rejected, e.Name)
			continue
		}
		res.Accepted = append(res.Accepted, item)
	}
	return res
}

// Clear drops the session's cart (cancellation path).
func (a *Aggregator) Clear(sessionID string) {
	a.store.Clear(sessionID)
}

// Snapshot returns the current cart lines in insertion order.
func (a *Aggregator) Snapshot(sessionID string) []Line {
	return a.store.Snapshot(sessionID)
}

func wholeQuantity(q float64) (int, bool) {
	if q < 1 || q > maxQuantity || q != math.Trunc(q) {
		return 0, false
	}
	return int(q), true
}
