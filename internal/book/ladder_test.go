package book_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

func descending(a, b common.Price) bool { return a > b }
func ascending(a, b common.Price) bool  { return a < b }

func order(id string, price common.Price, qty common.Qty) *common.Order {
	return &common.Order{ID: id, Price: price, Qty: qty, Remaining: qty}
}

func TestLadder_BestPriceOrdering(t *testing.T) {
	bids := book.New(descending)
	bids.Insert(order("a", 99, 1))
	bids.Insert(order("b", 101, 1))
	bids.Insert(order("c", 100, 1))

	price, ok := bids.BestPrice()
	require.True(t, ok)
	assert.Equal(t, common.Price(101), price)
}

func TestLadder_FIFOWithinLevel(t *testing.T) {
	l := book.New(ascending)
	l.Insert(order("first", 100, 1))
	l.Insert(order("second", 100, 1))

	head, ok := l.PeekHead(100)
	require.True(t, ok)
	assert.Equal(t, "first", head.ID)
}

func TestLadder_PopHeadIfZero(t *testing.T) {
	l := book.New(ascending)
	o := order("x", 100, 1)
	l.Insert(o)

	assert.Nil(t, l.PopHeadIfZero(100), "head still has quantity left")

	o.Remaining = 0
	popped := l.PopHeadIfZero(100)
	require.NotNil(t, popped)
	assert.Equal(t, "x", popped.ID)
	assert.True(t, l.Empty(), "level must be deleted once its last order is popped")
}

func TestLadder_RemoveByID(t *testing.T) {
	l := book.New(ascending)
	l.Insert(order("a", 100, 1))
	l.Insert(order("b", 100, 1))

	assert.True(t, l.RemoveByID(&common.Order{ID: "a", Price: 100}))
	assert.False(t, l.RemoveByID(&common.Order{ID: "a", Price: 100}), "already removed")

	head, ok := l.PeekHead(100)
	require.True(t, ok)
	assert.Equal(t, "b", head.ID)
}

func TestLadder_IterFromBestRespectsLimit(t *testing.T) {
	l := book.New(ascending)
	l.Insert(order("a", 100, 1))
	l.Insert(order("b", 101, 1))
	l.Insert(order("c", 102, 1))

	levels := l.IterFromBest(2)
	require.Len(t, levels, 2)
	assert.Equal(t, common.Price(100), levels[0].Price)
	assert.Equal(t, common.Price(101), levels[1].Price)
}

func TestLadder_EmptyLevelDeletedOnFullRemoval(t *testing.T) {
	l := book.New(ascending)
	l.Insert(order("solo", 100, 1))
	l.RemoveByID(&common.Order{ID: "solo", Price: 100})
	assert.True(t, l.Empty())
	_, ok := l.BestPrice()
	assert.False(t, ok)
}
