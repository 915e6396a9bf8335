package engine

import (
	"fenrir/internal/book"
	"fenrir/internal/common"
	"fenrir/internal/events"
)

// Bbo returns the best-bid/best-offer snapshot (spec.md §4.4). Queries
// are serialized against writers by the same mutex Submit/Cancel hold,
// so the snapshot always observes a consistent book (spec.md §5).
func (b *OrderBook) Bbo() events.Bbo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bboLocked()
}

func (b *OrderBook) bboLocked() events.Bbo {
	bbo := events.Bbo{}
	if lvl, ok := b.bids.BestLevel(); ok {
		bbo.Bids = []events.LevelView{{Price: lvl.Price, Qty: lvl.Qty()}}
	}
	if lvl, ok := b.asks.BestLevel(); ok {
		bbo.Asks = []events.LevelView{{Price: lvl.Price, Qty: lvl.Qty()}}
	}
	return bbo
}

// DepthLevel is one (price, aggregate qty) pair of a Depth snapshot.
type DepthLevel struct {
	Price common.Price
	Qty   common.Qty
}

// Depth returns up to n best price levels per side (spec.md §4.4).
func (b *OrderBook) Depth(n int) (bids, asks []DepthLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return toDepth(b.bids.IterFromBest(n)), toDepth(b.asks.IterFromBest(n))
}

func toDepth(levels []*book.Level) []DepthLevel {
	if len(levels) == 0 {
		return nil
	}
	out := make([]DepthLevel, len(levels))
	for i, lvl := range levels {
		out[i] = DepthLevel{Price: lvl.Price, Qty: lvl.Qty()}
	}
	return out
}

// RecentTrades returns the last limit entries of the trade log, in
// insertion order (spec.md §4.4).
func (b *OrderBook) RecentTrades(limit int) []common.Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trades.tail(limit)
}
