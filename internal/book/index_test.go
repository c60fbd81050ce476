package book

import (
	"testing"

	"github.com/axiomex/clobengine/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestIndex_BestBidIsHighestPrice(t *testing.T) {
	idx := NewIndex()
	idx.GetOrCreateLevel(99, common.Buy)
	idx.GetOrCreateLevel(101, common.Buy)
	idx.GetOrCreateLevel(100, common.Buy)

	price, ok := idx.BestBid()
	assert.True(t, ok)
	assert.Equal(t, common.Price(101), price)
}

func TestIndex_BestAskIsLowestPrice(t *testing.T) {
	idx := NewIndex()
	idx.GetOrCreateLevel(105, common.Sell)
	idx.GetOrCreateLevel(102, common.Sell)
	idx.GetOrCreateLevel(110, common.Sell)

	price, ok := idx.BestAsk()
	assert.True(t, ok)
	assert.Equal(t, common.Price(102), price)
}

func TestIndex_LocateRegisterUnregister(t *testing.T) {
	idx := NewIndex()
	o := newRestingOrder(10, common.Buy, "")
	lvl := idx.GetOrCreateLevel(100, common.Buy)
	lvl.Add(o)
	idx.Register(o.ID, 100, common.Buy)

	price, side, ok := idx.Locate(o.ID)
	assert.True(t, ok)
	assert.Equal(t, common.Price(100), price)
	assert.Equal(t, common.Buy, side)

	idx.Unregister(o.ID)
	_, _, ok = idx.Locate(o.ID)
	assert.False(t, ok)
}

func TestIndex_DropLevelIfEmpty(t *testing.T) {
	idx := NewIndex()
	o := newRestingOrder(10, common.Buy, "")
	lvl := idx.GetOrCreateLevel(100, common.Buy)
	lvl.Add(o)

	lvl.Remove(o.ID)
	idx.DropLevelIfEmpty(100, common.Buy)

	_, ok := idx.GetLevel(100, common.Buy)
	assert.False(t, ok)
}

func TestIndex_DropLevelIfEmptyKeepsNonEmptyLevel(t *testing.T) {
	idx := NewIndex()
	lvl := idx.GetOrCreateLevel(100, common.Buy)
	lvl.Add(newRestingOrder(10, common.Buy, ""))

	idx.DropLevelIfEmpty(100, common.Buy)

	_, ok := idx.GetLevel(100, common.Buy)
	assert.True(t, ok)
}

func TestIndex_WalkVisitsInPriorityOrderAndStopsEarly(t *testing.T) {
	idx := NewIndex()
	idx.GetOrCreateLevel(101, common.Sell)
	idx.GetOrCreateLevel(100, common.Sell)
	idx.GetOrCreateLevel(102, common.Sell)

	var visited []common.Price
	idx.Walk(common.Sell, func(lvl *PriceLevel) bool {
		visited = append(visited, lvl.Price)
		return lvl.Price < 101
	})

	assert.Equal(t, []common.Price{100, 101}, visited, "walk stops as soon as visit returns false")
}

func TestIndex_SnapshotOrdersBySidePriority(t *testing.T) {
	idx := NewIndex()
	bidA := idx.GetOrCreateLevel(99, common.Buy)
	bidA.Add(newRestingOrder(5, common.Buy, ""))
	bidB := idx.GetOrCreateLevel(100, common.Buy)
	bidB.Add(newRestingOrder(7, common.Buy, ""))

	snap := idx.Snapshot(common.Buy)
	if assert.Len(t, snap, 2) {
		assert.Equal(t, common.Price(100), snap[0].Price, "bids snapshot highest price first")
		assert.Equal(t, common.Price(99), snap[1].Price)
	}
}

func TestIndex_OrderCount(t *testing.T) {
	idx := NewIndex()
	a := newRestingOrder(10, common.Buy, "")
	b := newRestingOrder(10, common.Sell, "")

	lvlA := idx.GetOrCreateLevel(100, common.Buy)
	lvlA.Add(a)
	idx.Register(a.ID, 100, common.Buy)

	lvlB := idx.GetOrCreateLevel(101, common.Sell)
	lvlB.Add(b)
	idx.Register(b.ID, 101, common.Sell)

	assert.Equal(t, 2, idx.OrderCount())
}
