package book

import (
	"github.com/axiomex/clobengine/internal/common"
	"github.com/tidwall/btree"
)

// location records where a resting order currently lives, so cancel/modify
// don't need to search both sides.
type location struct {
	price common.Price
	side  common.Side
}

// Levels is an ordered-by-price map of PriceLevel, backed by a B-tree
// rather than an unordered map with a per-call sort (see spec §9): best
// bid/ask is Min() and traversal in priority order is Scan/Ascend.
type Levels = btree.BTreeG[*PriceLevel]

// Index is the side-indexed price->level maps plus the order->location
// map. It has no concurrency control of its own: the engine holds a single
// write lock for the duration of one public operation (spec §5, design 2);
// per-level locks would still admit races across a multi-level sweep.
type Index struct {
	bids      *Levels // best bid first: ordered with highest price as Min()
	asks      *Levels // best ask first: ordered with lowest price as Min()
	locations map[common.OrderId]location
}

func NewIndex() *Index {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price // descending: highest bid is Min()
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price // ascending: lowest ask is Min()
	})
	return &Index{
		bids:      bids,
		asks:      asks,
		locations: make(map[common.OrderId]location),
	}
}

func (idx *Index) levels(side common.Side) *Levels {
	if side == common.Buy {
		return idx.bids
	}
	return idx.asks
}

// GetOrCreateLevel returns the level at price on side, creating an empty
// one if absent.
func (idx *Index) GetOrCreateLevel(price common.Price, side common.Side) *PriceLevel {
	levels := idx.levels(side)
	if lvl, ok := levels.Get(&PriceLevel{Price: price}); ok {
		return lvl
	}
	lvl := NewPriceLevel(price)
	levels.Set(lvl)
	return lvl
}

// GetLevel returns the level at price on side if one exists.
func (idx *Index) GetLevel(price common.Price, side common.Side) (*PriceLevel, bool) {
	return idx.levels(side).Get(&PriceLevel{Price: price})
}

// DropLevelIfEmpty removes the level at price on side if it has no
// resting orders left. Must run after every operation that could have
// emptied a level.
func (idx *Index) DropLevelIfEmpty(price common.Price, side common.Side) {
	levels := idx.levels(side)
	if lvl, ok := levels.Get(&PriceLevel{Price: price}); ok && lvl.IsEmpty() {
		levels.Delete(lvl)
	}
}

// Locate returns the (price, side) of a resting order, or ok=false.
func (idx *Index) Locate(id common.OrderId) (common.Price, common.Side, bool) {
	loc, ok := idx.locations[id]
	if !ok {
		return 0, 0, false
	}
	return loc.price, loc.side, true
}

func (idx *Index) Register(id common.OrderId, price common.Price, side common.Side) {
	idx.locations[id] = location{price: price, side: side}
}

func (idx *Index) Unregister(id common.OrderId) {
	delete(idx.locations, id)
}

// BestBid returns the highest resting bid price, if any.
func (idx *Index) BestBid() (common.Price, bool) {
	lvl, ok := idx.bids.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest resting ask price, if any.
func (idx *Index) BestAsk() (common.Price, bool) {
	lvl, ok := idx.asks.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestLevel returns the best (i.e. highest-priority) resting level on side.
func (idx *Index) BestLevel(side common.Side) (*PriceLevel, bool) {
	return idx.levels(side).Min()
}

// DropLevel removes lvl from side unconditionally, used by the matching
// loop once a level has been fully consumed.
func (idx *Index) DropLevel(lvl *PriceLevel, side common.Side) {
	idx.levels(side).Delete(lvl)
}

// Walk visits every level on side, best price first, stopping early if
// visit returns false. It must not mutate the tree (no Set/Delete) — used
// by the FOK pre-scan, which is required to be side-effect-free.
func (idx *Index) Walk(side common.Side, visit func(*PriceLevel) bool) {
	idx.levels(side).Scan(visit)
}

// Snapshot captures PriceLevelInfo for every level on side in priority
// order (bids descending, asks ascending).
func (idx *Index) Snapshot(side common.Side) []common.PriceLevelInfo {
	var out []common.PriceLevelInfo
	idx.levels(side).Scan(func(lvl *PriceLevel) bool {
		out = append(out, common.PriceLevelInfo{
			Price:      lvl.Price,
			Quantity:   lvl.TotalQuantity(),
			OrderCount: lvl.OrderCount(),
		})
		return true
	})
	return out
}

// OrderCount is the total number of resting orders tracked by the index.
func (idx *Index) OrderCount() int {
	return len(idx.locations)
}
