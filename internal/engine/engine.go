// Package engine is the matching engine: the public surface (add_limit,
// add_market, add_ioc, add_fok, cancel, modify), the traversal that
// enforces price-time priority, and the read-only views over the book.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/axiomex/clobengine/internal/book"
	"github.com/axiomex/clobengine/internal/clock"
	"github.com/axiomex/clobengine/internal/common"
	"github.com/axiomex/clobengine/internal/idgen"
)

// SelfTradePolicy controls what happens when an aggressor and a candidate
// resting order share a non-empty ClientID. Default is skip-and-continue
// (spec §4.3's open question is resolved this way; see DESIGN.md).
type SelfTradePolicy int

const (
	SelfTradeSkip SelfTradePolicy = iota
	SelfTradeReject
)

const defaultEventQueueSize = 1024

// Config tunes the handful of policy knobs the engine exposes. Zero Config
// is valid and uses the defaults documented on each field.
type Config struct {
	// Symbol is the single instrument this engine matches. Orders for any
	// other symbol are rejected with ErrInvalidSymbol.
	Symbol string

	// SelfTradePolicy defaults to SelfTradeSkip.
	SelfTradePolicy SelfTradePolicy

	// EventQueueSize bounds the async market-data broadcast channel (see
	// events.go); defaults to 1024. It does not affect the events returned
	// synchronously from each public call.
	EventQueueSize int

	Clock clock.Clock
	IDGen idgen.Generator
}

func (c Config) withDefaults() Config {
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = defaultEventQueueSize
	}
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	if c.IDGen == nil {
		c.IDGen = idgen.UUIDGenerator{}
	}
	return c
}

// Engine matches orders for a single instrument. A single public call
// (Add*/Cancel/Modify) is atomic with respect to concurrent callers: the
// whole operation runs under one write lock on the index (spec §5 design
// 2) — per-level locks are insufficient because an aggressor can cross
// many levels and must see a consistent best-of-book throughout.
type Engine struct {
	cfg   Config
	clock clock.Clock
	idGen idgen.Generator

	mu    sync.RWMutex
	index *book.Index

	seq            atomic.Uint64
	totalTrades    atomic.Uint64
	totalVolume    atomic.Uint64
	lastTradePrice atomic.Uint64 // common.Price; 0 means "no trade yet"

	events        chan common.Event
	eventOverflow atomic.Uint64
}

func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:    cfg,
		clock:  cfg.Clock,
		idGen:  cfg.IDGen,
		index:  book.NewIndex(),
		events: make(chan common.Event, cfg.EventQueueSize),
	}
}

// Symbol returns the instrument this engine matches.
func (e *Engine) Symbol() string { return e.cfg.Symbol }

// BestBid returns the highest resting bid price, if any.
func (e *Engine) BestBid() (common.Price, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.BestBid()
}

// BestAsk returns the lowest resting ask price, if any.
func (e *Engine) BestAsk() (common.Price, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.BestAsk()
}

// Spread returns BestAsk - BestBid, if both sides have liquidity.
func (e *Engine) Spread() (common.Price, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	bid, bidOk := e.index.BestBid()
	ask, askOk := e.index.BestAsk()
	if !bidOk || !askOk {
		return 0, false
	}
	return ask - bid, true
}

// LastTradePrice returns the price of the most recent trade, if any has
// occurred. It is a lock-free atomic read, safe for monitors to poll.
func (e *Engine) LastTradePrice() (common.Price, bool) {
	p := common.Price(e.lastTradePrice.Load())
	return p, p != 0
}

// TotalOrders returns the number of resting orders currently in the book.
func (e *Engine) TotalOrders() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.OrderCount()
}

// Stats bundles the lock-free aggregate counters.
func (e *Engine) Stats() common.Stats {
	return common.Stats{
		TotalTrades:    e.totalTrades.Load(),
		TotalVolume:    common.Quantity(e.totalVolume.Load()),
		LastTradePrice: common.Price(e.lastTradePrice.Load()),
	}
}

// Snapshot returns a point-in-time view of both sides of the book.
func (e *Engine) Snapshot() common.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return common.Snapshot{
		Symbol:         e.cfg.Symbol,
		Timestamp:      e.clock.Now(),
		Bids:           e.index.Snapshot(common.Buy),
		Asks:           e.index.Snapshot(common.Sell),
		LastTradePrice: common.Price(e.lastTradePrice.Load()),
	}
}

// PublishSnapshot builds a point-in-time Snapshot and emits it as a
// BookSnapshot event on the broadcast channel (see Events), for a
// consumer that wants book snapshots interleaved with the trade/order
// stream rather than pulled separately via Snapshot(). It is "on demand"
// per spec §6 — nothing calls it from inside the matching loop.
func (e *Engine) PublishSnapshot() common.Event {
	snap := e.Snapshot()
	return e.publish(nil, common.NewBookSnapshotEvent(&snap))[0]
}

func (e *Engine) recordFill(price common.Price, qty common.Quantity) {
	e.totalTrades.Add(1)
	e.totalVolume.Add(uint64(qty))
	e.lastTradePrice.Store(uint64(price))
}
