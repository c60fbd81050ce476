package engine

import "github.com/axiomex/clobengine/internal/common"

// validateOrder runs the checks every entry point shares before touching
// the book: symbol match, a sane quantity, a terminal-state guard, and the
// price<->type invariant (price == 0 iff type == Market). Stop and
// StopLimit are declared in the taxonomy but never reach the matcher (spec
// §9) — every caller here already pins its own expected type, so a
// mismatched Type (including Stop/StopLimit) is rejected uniformly.
func (e *Engine) validateOrder(o *common.Order, expect common.OrderType) error {
	if o.Symbol != e.cfg.Symbol {
		return common.ErrInvalidSymbol
	}
	if o.Type != expect {
		return common.ErrInvalidOrderType
	}
	if o.Status.IsTerminal() {
		return common.ErrInvalidOrderState
	}
	if o.OriginalQty == 0 || o.RemainingQty == 0 {
		return common.ErrInvalidQuantity
	}
	switch expect {
	case common.Market:
		if o.Price != 0 {
			return common.ErrInvalidPrice
		}
	case common.Limit, common.IOC, common.FOK:
		if o.Price == 0 {
			return common.ErrInvalidPrice
		}
	default:
		return common.ErrInvalidOrderType
	}
	return nil
}

// pricePermits is the crossing test shared by every non-market order type:
// a buy may take an ask at or below its limit, a sell may take a bid at or
// above its limit.
func pricePermits(side common.Side, aggressorPrice, levelPrice common.Price) bool {
	if side == common.Buy {
		return aggressorPrice >= levelPrice
	}
	return aggressorPrice <= levelPrice
}
