package webhook

import "strings"

// Intent is the tagged category a turn dispatches on. Anything the parser
// does not recognize stays IntentUnknown and gets the fallback reply.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentAddItem
	IntentRemoveItem
	IntentCompleteOrder
	IntentCancelOrder
	IntentTrackOrder
)

func (i Intent) String() string {
	switch i {
	case IntentAddItem:
		return "add-item"
	case IntentRemoveItem:
		return "remove-item"
	case IntentCompleteOrder:
		return "complete-order"
	case IntentCancelOrder:
		return "cancel-order"
	case IntentTrackOrder:
		return "track-order"
	default:
		return "unknown"
	}
}

// The agent's display names, whitespace-folded. The original agent spaces
// these inconsistently ("order.add- context: ongoing-order"), so matching
// ignores spaces entirely.
var intentsByName = map[string]Intent{
	"order.add-context:ongoing-order":      IntentAddItem,
	"order.remove-context:ongoing-order":   IntentRemoveItem,
	"order.complete-context:ongoing-order": IntentCompleteOrder,
	"order.cancel-context:ongoing-order":   IntentCancelOrder,
	"track.order-context:ongoing-tracking": IntentTrackOrder,
}

func ParseIntent(displayName string) Intent {
	key := strings.ToLower(strings.ReplaceAll(displayName, " ", ""))
	return intentsByName[key]
}
