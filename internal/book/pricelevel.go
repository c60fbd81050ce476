// Package book holds the price-ordered side maps and the order-identity
// index the matching engine traverses. Nothing here matches orders against
// each other — that is the engine's job — this package only maintains time
// priority within a price and answers "take up to Q units from the front".
package book

import (
	"github.com/axiomex/clobengine/internal/common"
)

// PriceLevel is an ordered FIFO queue of resting orders at one price plus
// redundantly-maintained aggregate counters, so depth reads are O(1)
// instead of a walk over the queue.
type PriceLevel struct {
	Price      common.Price
	orders     []*common.Order
	totalQty   common.Quantity
	orderCount uint32
}

func NewPriceLevel(price common.Price) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Add appends to the queue tail; time priority is encoded purely as queue
// position.
func (l *PriceLevel) Add(o *common.Order) {
	l.orders = append(l.orders, o)
	l.totalQty += o.RemainingQty
	l.orderCount++
}

// Remove finds an order by id, splices it out preserving the order of the
// remaining queue, and returns it. O(queue length).
func (l *PriceLevel) Remove(id common.OrderId) *common.Order {
	for i, o := range l.orders {
		if o.ID == id {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			l.totalQty -= o.RemainingQty
			l.orderCount--
			return o
		}
	}
	return nil
}

// ModifyQuantity locates an order by id and replaces its RemainingQty,
// preserving queue position (and therefore time priority). newQty is the
// new remaining quantity; validating the order's new total against its
// FilledQty is the caller's job.
func (l *PriceLevel) ModifyQuantity(id common.OrderId, newQty common.Quantity) bool {
	for _, o := range l.orders {
		if o.ID == id {
			old := o.RemainingQty
			o.RemainingQty = newQty
			if newQty >= old {
				l.totalQty += newQty - old
			} else {
				l.totalQty -= old - newQty
			}
			return true
		}
	}
	return false
}

// Fill is a single (order, fillQty) pair produced by Take, reported against
// the order's pre-fill snapshot — the emitted Trade must reflect the fill
// amount, not the order's post-fill state.
type Fill struct {
	PreFill common.Order
	Live    *common.Order // the same order as still held by the level (nil once fully popped)
	FillQty common.Quantity
}

// Take repeatedly fills the head of the queue by min(remaining, head's
// remaining) until requested is exhausted or the queue empties, popping any
// order it exhausts. It always accounts for a partial take — taking more
// than available simply takes what's there.
func (l *PriceLevel) Take(requested common.Quantity) []Fill {
	return l.TakeMatching(requested, nil)
}

// TakeMatching is Take with a self-trade hook: skip, if non-nil, is
// consulted for each candidate in FIFO order; an order it rejects is left
// in place and the scan continues to the next FIFO candidate at this same
// level, exactly as spec §4.3's "skip and continue" policy requires.
func (l *PriceLevel) TakeMatching(requested common.Quantity, skip func(*common.Order) bool) []Fill {
	var fills []Fill
	i := 0
	for requested > 0 && i < len(l.orders) {
		o := l.orders[i]
		if skip != nil && skip(o) {
			i++
			continue
		}

		pre := o.Clone()

		fillQty := requested
		if o.RemainingQty < fillQty {
			fillQty = o.RemainingQty
		}

		o.Fill(fillQty)
		l.totalQty -= fillQty
		requested -= fillQty

		exhausted := o.RemainingQty == 0
		var live *common.Order
		if exhausted {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			l.orderCount--
			// slice shifted left; don't advance i
		} else {
			live = o
			i++
		}

		fills = append(fills, Fill{PreFill: pre, Live: live, FillQty: fillQty})
	}
	return fills
}

func (l *PriceLevel) TotalQuantity() common.Quantity { return l.totalQty }

func (l *PriceLevel) OrderCount() uint32 { return l.orderCount }

func (l *PriceLevel) IsEmpty() bool { return l.orderCount == 0 }

// Orders returns the queue in FIFO order, front first. Callers must not
// mutate the returned slice or its elements.
func (l *PriceLevel) Orders() []*common.Order { return l.orders }
