package book

import (
	"testing"

	"github.com/axiomex/clobengine/internal/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newRestingOrder(qty common.Quantity, side common.Side, clientID string) *common.Order {
	return &common.Order{
		ID:           uuid.New(),
		Symbol:       "AAPL",
		Side:         side,
		Type:         common.Limit,
		Price:        100,
		OriginalQty:  qty,
		RemainingQty: qty,
		Status:       common.New,
		ClientID:     clientID,
	}
}

func TestPriceLevel_AddPreservesFIFOOrder(t *testing.T) {
	lvl := NewPriceLevel(100)
	first := newRestingOrder(10, common.Buy, "")
	second := newRestingOrder(20, common.Buy, "")
	lvl.Add(first)
	lvl.Add(second)

	assert.Equal(t, common.Quantity(30), lvl.TotalQuantity())
	assert.Equal(t, uint32(2), lvl.OrderCount())
	assert.Equal(t, []*common.Order{first, second}, lvl.Orders())
}

func TestPriceLevel_RemoveSplicesAndPreservesOrder(t *testing.T) {
	lvl := NewPriceLevel(100)
	a := newRestingOrder(10, common.Buy, "")
	b := newRestingOrder(20, common.Buy, "")
	c := newRestingOrder(30, common.Buy, "")
	lvl.Add(a)
	lvl.Add(b)
	lvl.Add(c)

	removed := lvl.Remove(b.ID)
	assert.Same(t, b, removed)
	assert.Equal(t, []*common.Order{a, c}, lvl.Orders())
	assert.Equal(t, common.Quantity(40), lvl.TotalQuantity())
	assert.Equal(t, uint32(2), lvl.OrderCount())
}

func TestPriceLevel_RemoveMissingReturnsNil(t *testing.T) {
	lvl := NewPriceLevel(100)
	assert.Nil(t, lvl.Remove(uuid.New()))
}

func TestPriceLevel_ModifyQuantityPreservesPosition(t *testing.T) {
	lvl := NewPriceLevel(100)
	a := newRestingOrder(10, common.Buy, "")
	b := newRestingOrder(20, common.Buy, "")
	lvl.Add(a)
	lvl.Add(b)

	ok := lvl.ModifyQuantity(a.ID, 5)
	assert.True(t, ok)
	assert.Equal(t, common.Quantity(5), a.RemainingQty)
	assert.Equal(t, common.Quantity(25), lvl.TotalQuantity())
	assert.Equal(t, []*common.Order{a, b}, lvl.Orders(), "modify must not reorder the queue")
}

func TestPriceLevel_TakeExhaustsHeadBeforeAdvancing(t *testing.T) {
	lvl := NewPriceLevel(100)
	a := newRestingOrder(10, common.Sell, "")
	b := newRestingOrder(20, common.Sell, "")
	lvl.Add(a)
	lvl.Add(b)

	fills := lvl.Take(15)
	if assert.Len(t, fills, 2) {
		assert.Equal(t, common.Quantity(10), fills[0].FillQty)
		assert.Nil(t, fills[0].Live, "first order should be fully consumed")
		assert.Equal(t, common.Quantity(5), fills[1].FillQty)
		assert.NotNil(t, fills[1].Live)
	}
	assert.Equal(t, common.Quantity(15), lvl.TotalQuantity())
	assert.Equal(t, uint32(1), lvl.OrderCount())
}

func TestPriceLevel_TakeMoreThanAvailableTakesWhatsThere(t *testing.T) {
	lvl := NewPriceLevel(100)
	lvl.Add(newRestingOrder(10, common.Sell, ""))

	fills := lvl.Take(1000)
	if assert.Len(t, fills, 1) {
		assert.Equal(t, common.Quantity(10), fills[0].FillQty)
	}
	assert.True(t, lvl.IsEmpty())
}

func TestPriceLevel_TakeMatchingSkipsSelfTradeCandidate(t *testing.T) {
	lvl := NewPriceLevel(100)
	own := newRestingOrder(10, common.Sell, "alice")
	other := newRestingOrder(10, common.Sell, "bob")
	lvl.Add(own)
	lvl.Add(other)

	skip := func(o *common.Order) bool { return o.ClientID == "alice" }
	fills := lvl.TakeMatching(10, skip)

	if assert.Len(t, fills, 1) {
		assert.Equal(t, other.ID, fills[0].PreFill.ID)
	}
	assert.Equal(t, common.Quantity(10), lvl.TotalQuantity(), "the skipped order must remain resting")
	assert.Equal(t, uint32(1), lvl.OrderCount())
}
