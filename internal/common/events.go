package common

// EventKind tags the variant carried by an Event; exactly one of the
// corresponding fields below is populated.
type EventKind int

const (
	EventOrderAdded EventKind = iota
	EventOrderCancelled
	EventOrderModified
	EventTrade
	EventBookSnapshot
)

// Event is the single envelope the engine emits for every public effect.
// Seq is a monotonically increasing per-engine sequence number so a
// downstream feed consumer can detect gaps in the stream it's handed.
type Event struct {
	Kind EventKind
	Seq  uint64

	// EventOrderAdded: the residual of an aggressive limit order that rested.
	Order *Order

	// EventOrderCancelled
	CancelledOrderID       OrderId
	CancelledRemainingQty  Quantity

	// EventOrderModified: only for quantity-only in-place modifications, or
	// for the single-event price-change policy chosen in DESIGN.md.
	ModifiedOrderID  OrderId
	ModifiedNewPrice *Price
	ModifiedNewQty   *Quantity

	// EventTrade
	Trade *Trade

	// EventBookSnapshot
	Snapshot *Snapshot
}

func NewOrderAddedEvent(o *Order) Event {
	return Event{Kind: EventOrderAdded, Order: o}
}

func NewOrderCancelledEvent(id OrderId, remaining Quantity) Event {
	return Event{Kind: EventOrderCancelled, CancelledOrderID: id, CancelledRemainingQty: remaining}
}

func NewOrderModifiedEvent(id OrderId, newPrice *Price, newQty *Quantity) Event {
	return Event{Kind: EventOrderModified, ModifiedOrderID: id, ModifiedNewPrice: newPrice, ModifiedNewQty: newQty}
}

func NewTradeEvent(t *Trade) Event {
	return Event{Kind: EventTrade, Trade: t}
}

func NewBookSnapshotEvent(s *Snapshot) Event {
	return Event{Kind: EventBookSnapshot, Snapshot: s}
}
