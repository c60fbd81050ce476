// Package common holds the value types shared by the book and the engine:
// sides, order types, order/trade records and the market events the engine
// emits. None of it touches the network or the matching loop.
package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Price is an unsigned tick count. Zero is the sentinel "no price", used by
// market orders and by "no last trade".
type Price uint64

// Quantity is in shares/units. Zero means exhausted.
type Quantity uint64

// OrderId is a collision-free 128-bit identifier.
type OrderId = uuid.UUID

// TradeId identifies an individual fill.
type TradeId = uuid.UUID

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType int

const (
	Market OrderType = iota
	Limit
	IOC
	FOK
	Stop
	StopLimit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case Stop:
		return "STOP"
	case StopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

type OrderStatus int

const (
	New OrderStatus = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
	Expired
)

func (s OrderStatus) String() string {
	switch s {
	case New:
		return "NEW"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	case Expired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further mutation of the order is possible.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, Rejected, Expired:
		return true
	default:
		return false
	}
}

// Order is a resting or in-flight order. Invariants the engine maintains
// across its operations (it does not run a separate check for them):
//
//	OriginalQty == FilledQty + RemainingQty
//	Status == Filled          iff RemainingQty == 0 && OriginalQty > 0
//	Status == PartiallyFilled iff 0 < FilledQty < OriginalQty
//	Price == 0                iff Type == Market
type Order struct {
	ID            OrderId
	Symbol        string
	Side          Side
	Type          OrderType
	Price         Price
	StopPrice     Price
	OriginalQty   Quantity
	RemainingQty  Quantity
	FilledQty     Quantity
	Status        OrderStatus
	Timestamp     time.Time
	ExchTimestamp time.Time
	ClientID      string // optional; empty means "no self-trade group"
}

// Clone returns a value copy; orders are stored by pointer in price levels
// but emitted events must not alias engine-owned state.
func (o *Order) Clone() Order {
	return *o
}

// Fill reduces RemainingQty by qty and advances Status. Callers guarantee
// qty <= RemainingQty; the price level's TakeMatching and the engine's
// matching loop never call it otherwise.
func (o *Order) Fill(qty Quantity) {
	o.RemainingQty -= qty
	o.FilledQty += qty
	if o.RemainingQty == 0 {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
}

// Cancel marks the order terminally cancelled without touching quantities.
func (o *Order) Cancel() {
	o.Status = Cancelled
}

func (o Order) String() string {
	return fmt.Sprintf("Order{id=%s symbol=%s side=%s type=%s price=%d qty=%d/%d status=%s}",
		o.ID, o.Symbol, o.Side, o.Type, o.Price, o.RemainingQty, o.OriginalQty, o.Status)
}

// Trade is emitted at the resting (passive) order's price — the aggressor
// always receives price improvement, never price degradation.
type Trade struct {
	ID             TradeId
	Symbol         string
	BuyerOrderID   OrderId
	SellerOrderID  OrderId
	BuyerClientID  string // optional; owner of the buy side, for report routing
	SellerClientID string // optional; owner of the sell side, for report routing
	Price          Price
	Quantity       Quantity
	Timestamp      time.Time
}

// PriceLevelInfo is the aggregate view of one side's level for snapshots.
type PriceLevelInfo struct {
	Price      Price
	Quantity   Quantity
	OrderCount uint32
}

// Snapshot is a point-in-time view of both sides of the book.
type Snapshot struct {
	Symbol         string
	Timestamp      time.Time
	Bids           []PriceLevelInfo // sorted descending by price
	Asks           []PriceLevelInfo // sorted ascending by price
	LastTradePrice Price            // 0 means "no trade yet"
}

// Stats bundles the aggregate counters a monitor reads lock-free.
type Stats struct {
	TotalTrades    uint64
	TotalVolume    Quantity
	LastTradePrice Price
}
