package engine

import (
	"github.com/axiomex/clobengine/internal/book"
	"github.com/axiomex/clobengine/internal/common"
)

// AddLimit submits a limit order: it crosses the book as far as its price
// permits, and any residual quantity rests at its own price.
func (e *Engine) AddLimit(order common.Order) ([]common.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateOrder(&order, common.Limit); err != nil {
		return nil, err
	}
	if err := e.rejectUpfrontSelfTrade(&order); err != nil {
		return nil, err
	}

	var events []common.Event
	trades := e.matchLoop(&order)
	for i := range trades {
		events = e.publish(events, common.NewTradeEvent(&trades[i]))
	}

	if order.RemainingQty > 0 {
		e.rest(&order)
		events = e.publish(events, common.NewOrderAddedEvent(&order))
	}
	return events, nil
}

// AddMarket submits a market order: it sweeps the opposite side at
// whatever prices are available. A call that produces no fills at all
// errors with ErrNoLiquidity rather than resting (market orders never
// rest).
func (e *Engine) AddMarket(order common.Order) ([]common.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateOrder(&order, common.Market); err != nil {
		return nil, err
	}
	if err := e.rejectUpfrontSelfTrade(&order); err != nil {
		return nil, err
	}

	trades := e.matchLoop(&order)
	if len(trades) == 0 {
		return nil, common.ErrNoLiquidity
	}

	var events []common.Event
	for i := range trades {
		events = e.publish(events, common.NewTradeEvent(&trades[i]))
	}
	// Any residual quantity (order could not be fully filled) is discarded:
	// market orders never rest.
	return events, nil
}

// AddIOC submits an Immediate-Or-Cancel order: it matches as a limit order
// would, then any unfilled residual is cancelled silently — no
// OrderAdded, no cancel event for the residual.
func (e *Engine) AddIOC(order common.Order) ([]common.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateOrder(&order, common.IOC); err != nil {
		return nil, err
	}
	if err := e.rejectUpfrontSelfTrade(&order); err != nil {
		return nil, err
	}

	trades := e.matchLoop(&order)
	var events []common.Event
	for i := range trades {
		events = e.publish(events, common.NewTradeEvent(&trades[i]))
	}
	if order.RemainingQty > 0 {
		order.Cancel()
	}
	return events, nil
}

// AddFOK submits a Fill-Or-Kill order: the entire quantity must be
// matchable right now or nothing happens. An empty event list (no error)
// means the order was rejected by the FOK pre-scan.
func (e *Engine) AddFOK(order common.Order) ([]common.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validateOrder(&order, common.FOK); err != nil {
		return nil, err
	}

	available := e.fokAvailableQuantity(&order)
	if available < order.RemainingQty {
		order.Cancel()
		return nil, nil
	}

	if err := e.rejectUpfrontSelfTrade(&order); err != nil {
		return nil, err
	}

	trades := e.matchLoop(&order)
	var events []common.Event
	for i := range trades {
		events = e.publish(events, common.NewTradeEvent(&trades[i]))
	}
	return events, nil
}

// rest inserts the residual of an aggressive order into its own side at
// its limit price and registers it in the location index.
func (e *Engine) rest(order *common.Order) {
	lvl := e.index.GetOrCreateLevel(order.Price, order.Side)
	resting := order.Clone()
	lvl.Add(&resting)
	e.index.Register(resting.ID, resting.Price, resting.Side)
}

// matchLoop is the common matching loop of spec §4.3: it consumes
// eligible opposite-side levels in priority order (ascending ask price for
// a buy aggressor, descending bid price for a sell aggressor), filling the
// aggressor as far as its quantity and its price (if any) permit, and
// drops any level it empties. Trade price is always the resting order's
// level price. It is the only place RemainingQty/Status are mutated on
// either side of a cross.
func (e *Engine) matchLoop(aggressor *common.Order) []common.Trade {
	oppSide := aggressor.Side.Opposite()
	levels := e.eligibleLevels(aggressor, oppSide)
	skip := e.selfTradeFilter(aggressor)

	var trades []common.Trade
	for _, lvl := range levels {
		if aggressor.RemainingQty == 0 {
			break
		}
		avail := lvl.TotalQuantity()
		if avail == 0 {
			continue
		}

		takeQty := aggressor.RemainingQty
		if avail < takeQty {
			takeQty = avail
		}

		fills := lvl.TakeMatching(takeQty, skip)
		for _, f := range fills {
			buyer, seller := aggressor.ID, f.PreFill.ID
			buyerClientID, sellerClientID := aggressor.ClientID, f.PreFill.ClientID
			if aggressor.Side == common.Sell {
				buyer, seller = f.PreFill.ID, aggressor.ID
				buyerClientID, sellerClientID = f.PreFill.ClientID, aggressor.ClientID
			}

			trade := common.Trade{
				ID:             e.idGen.New(),
				Symbol:         aggressor.Symbol,
				BuyerOrderID:   buyer,
				SellerOrderID:  seller,
				BuyerClientID:  buyerClientID,
				SellerClientID: sellerClientID,
				Price:          lvl.Price,
				Quantity:       f.FillQty,
				Timestamp:      e.clock.Now(),
			}
			trades = append(trades, trade)

			aggressor.Fill(f.FillQty)
			e.recordFill(lvl.Price, f.FillQty)

			if f.Live == nil {
				e.index.Unregister(f.PreFill.ID)
			}
		}

		if lvl.IsEmpty() {
			e.index.DropLevel(lvl, oppSide)
		}
	}
	return trades
}

// eligibleLevels collects the opposite-side levels this aggressor may
// cross, in priority order, stopping at the first level its price does
// not permit (market orders never stop early). Read-only: used by both
// matchLoop and the FOK pre-scan.
func (e *Engine) eligibleLevels(aggressor *common.Order, oppSide common.Side) []*book.PriceLevel {
	var levels []*book.PriceLevel
	e.index.Walk(oppSide, func(lvl *book.PriceLevel) bool {
		if aggressor.Type != common.Market && !pricePermits(aggressor.Side, aggressor.Price, lvl.Price) {
			return false
		}
		levels = append(levels, lvl)
		return true
	})
	return levels
}

// fokAvailableQuantity is the FOK pre-scan of spec §4.3: it sums the
// price-eligible levels' quantity, leaving out resting orders the
// self-trade filter would skip, without mutating anything, so a failed FOK
// leaves the book untouched.
func (e *Engine) fokAvailableQuantity(order *common.Order) common.Quantity {
	var total common.Quantity
	skip := e.selfTradeFilter(order)
	for _, lvl := range e.eligibleLevels(order, order.Side.Opposite()) {
		if skip == nil {
			total += lvl.TotalQuantity()
			continue
		}
		for _, o := range lvl.Orders() {
			if !skip(o) {
				total += o.RemainingQty
			}
		}
	}
	return total
}

// selfTradeFilter returns the predicate TakeMatching uses to skip resting
// orders sharing the aggressor's ClientID ("skip and continue", spec
// §4.3's default). nil disables the check (no client id on the aggressor).
func (e *Engine) selfTradeFilter(aggressor *common.Order) func(*common.Order) bool {
	if aggressor.ClientID == "" {
		return nil
	}
	return func(resting *common.Order) bool {
		return resting.ClientID != "" && resting.ClientID == aggressor.ClientID
	}
}

// rejectUpfrontSelfTrade implements the reject-mode self-trade policy: if
// the very first FIFO candidate this aggressor would meet shares its
// ClientID, the whole call is rejected before any mutation happens. Once
// matching has produced its first fill the operation must complete (spec
// §4.3's failure semantics forbid rollback), so reject mode only ever
// fires here, pre-mutation; any self-trade encountered deeper into the
// sweep is skipped exactly like SelfTradeSkip.
func (e *Engine) rejectUpfrontSelfTrade(aggressor *common.Order) error {
	if e.cfg.SelfTradePolicy != SelfTradeReject || aggressor.ClientID == "" {
		return nil
	}
	var blocked bool
	e.index.Walk(aggressor.Side.Opposite(), func(lvl *book.PriceLevel) bool {
		if aggressor.Type != common.Market && !pricePermits(aggressor.Side, aggressor.Price, lvl.Price) {
			return false
		}
		orders := lvl.Orders()
		if len(orders) == 0 {
			return true
		}
		blocked = orders[0].ClientID != "" && orders[0].ClientID == aggressor.ClientID
		return false
	})
	if blocked {
		return common.ErrSelfTrade
	}
	return nil
}
