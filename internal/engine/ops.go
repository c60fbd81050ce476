package engine

import (
	"github.com/axiomex/clobengine/internal/book"
	"github.com/axiomex/clobengine/internal/common"
)

// Cancel removes a resting order from the book. ErrOrderNotFound covers
// both "never existed" and the race where the location index points at a
// level that no longer holds the order (spec §7's recoverable-invariant
// case): either way the stale location entry is discarded before
// returning.
func (e *Engine) Cancel(id common.OrderId) (common.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, side, ok := e.index.Locate(id)
	if !ok {
		return common.Event{}, common.ErrOrderNotFound
	}

	lvl, ok := e.index.GetLevel(price, side)
	if !ok {
		e.index.Unregister(id)
		return common.Event{}, common.ErrOrderNotFound
	}

	removed := lvl.Remove(id)
	if removed == nil {
		e.index.Unregister(id)
		return common.Event{}, common.ErrOrderNotFound
	}

	e.index.DropLevelIfEmpty(price, side)
	e.index.Unregister(id)

	events := e.publish(nil, common.NewOrderCancelledEvent(id, removed.RemainingQty))
	return events[0], nil
}

// Modify changes a resting order's price and/or quantity.
//
//   - Quantity-only change (no newPrice, or newPrice equal to the current
//     price), whether a decrease or an increase: applied in place,
//     preserving time priority — the new remaining is newQuantity -
//     filledQuantity.
//   - Any price change: cancels the order and reinserts it at the new
//     price, losing time priority; this is the only path that may cross
//     the book mid-modify. Per DESIGN.md's resolution of spec §9's open
//     question, the order id is preserved and a single OrderModified
//     event is emitted — the intermediate cancel is not surfaced.
//   - Neither newPrice nor newQuantity given: ErrInvalidOrderState.
func (e *Engine) Modify(id common.OrderId, newPrice *common.Price, newQuantity *common.Quantity) ([]common.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if newPrice == nil && newQuantity == nil {
		return nil, common.ErrInvalidOrderState
	}

	price, side, ok := e.index.Locate(id)
	if !ok {
		return nil, common.ErrOrderNotFound
	}
	lvl, ok := e.index.GetLevel(price, side)
	if !ok {
		e.index.Unregister(id)
		return nil, common.ErrOrderNotFound
	}

	if newPrice == nil || *newPrice == price {
		return e.modifyQuantityInPlace(lvl, id, newQuantity)
	}
	return e.modifyPrice(lvl, id, price, side, *newPrice, newQuantity)
}

func (e *Engine) modifyQuantityInPlace(lvl *book.PriceLevel, id common.OrderId, newQuantity *common.Quantity) ([]common.Event, error) {
	if newQuantity == nil {
		// Price re-specified as unchanged and no quantity given: nothing to do.
		return nil, common.ErrInvalidOrderState
	}

	var filled common.Quantity
	var resting *common.Order
	for _, o := range lvl.Orders() {
		if o.ID == id {
			filled = o.FilledQty
			resting = o
			break
		}
	}

	if *newQuantity == 0 || *newQuantity < filled {
		return nil, common.ErrInvalidQuantity
	}

	newRemaining := *newQuantity - filled
	if !lvl.ModifyQuantity(id, newRemaining) {
		e.index.Unregister(id)
		return nil, common.ErrOrderNotFound
	}
	resting.OriginalQty = *newQuantity

	return e.publish(nil, common.NewOrderModifiedEvent(id, nil, newQuantity)), nil
}

func (e *Engine) modifyPrice(lvl *book.PriceLevel, id common.OrderId, oldPrice common.Price, side common.Side, newPrice common.Price, newQuantity *common.Quantity) ([]common.Event, error) {
	if newPrice == 0 {
		return nil, common.ErrInvalidPrice
	}

	var filled common.Quantity
	for _, o := range lvl.Orders() {
		if o.ID == id {
			filled = o.FilledQty
			break
		}
	}
	if newQuantity != nil && (*newQuantity == 0 || *newQuantity < filled) {
		return nil, common.ErrInvalidQuantity
	}

	removed := lvl.Remove(id)
	if removed == nil {
		e.index.Unregister(id)
		return nil, common.ErrOrderNotFound
	}
	e.index.DropLevelIfEmpty(oldPrice, side)
	e.index.Unregister(id)

	effectiveQty := removed.RemainingQty
	if newQuantity != nil {
		effectiveQty = *newQuantity - removed.FilledQty
	}

	fresh := *removed
	fresh.Price = newPrice
	fresh.RemainingQty = effectiveQty
	if newQuantity != nil {
		fresh.OriginalQty = *newQuantity
	}
	fresh.Status = common.New
	if fresh.FilledQty > 0 {
		fresh.Status = common.PartiallyFilled
	}

	trades := e.matchLoop(&fresh)
	var events []common.Event
	for i := range trades {
		events = e.publish(events, common.NewTradeEvent(&trades[i]))
	}

	if fresh.RemainingQty > 0 {
		e.rest(&fresh)
	}

	var qtyPtr *common.Quantity
	if newQuantity != nil {
		qtyPtr = newQuantity
	}
	events = e.publish(events, common.NewOrderModifiedEvent(id, &newPrice, qtyPtr))
	return events, nil
}
