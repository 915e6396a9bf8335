package engine

import (
	"fmt"

	"fenrir/internal/book"
	"fenrir/internal/common"
)

// checkInvariantsLocked walks spec.md §3's invariants. It must only be
// called while b.mu is held. Any violation is a matching-core bug
// (spec.md §7: "must crash the core, not silently recover"), so it
// panics rather than returning an error.
func (b *OrderBook) checkInvariantsLocked() {
	seen := make(map[string]common.Price)
	b.checkLadderLocked(b.bids, seen)
	b.checkLadderLocked(b.asks, seen)
	b.checkIDIndexLocked(seen)
	b.checkNotCrossedLocked()
}

// checkLadderLocked verifies invariants 1 ("depth equals sum of
// remaining"), 5 ("remaining > 0, no empty cells") for one ladder, and
// records each resting order's price into seen for checkIDIndexLocked
// (invariant 2: the id index and ladder contents are bijective).
func (b *OrderBook) checkLadderLocked(ladder *book.Ladder, seen map[string]common.Price) {
	for _, lvl := range ladder.IterFromBest(1 << 30) {
		if len(lvl.Orders) == 0 {
			b.panicInvariant("empty price level %d left in ladder", lvl.Price)
		}
		var sum common.Qty
		for _, o := range lvl.Orders {
			if o.Remaining == 0 {
				b.panicInvariant("zero-remaining order %s resting at price %d", o.ID, lvl.Price)
			}
			sum += o.Remaining
			seen[o.ID] = lvl.Price
		}
		if sum != lvl.Qty() {
			b.panicInvariant("level %d: aggregate qty mismatch", lvl.Price)
		}
	}
}

// checkIDIndexLocked verifies invariant 2 (id index <-> ladder
// bijection): every indexed id must have been seen while walking the
// ladders, at the price the index's order claims, and every seen id must
// be indexed.
func (b *OrderBook) checkIDIndexLocked(seen map[string]common.Price) {
	if len(seen) != len(b.index) {
		b.panicInvariant("id index has %d entries, ladders have %d resting orders", len(b.index), len(seen))
	}
	for id, order := range b.index {
		price, ok := seen[id]
		if !ok {
			b.panicInvariant("indexed order %s not found in its ladder", id)
		}
		if price != order.Price {
			b.panicInvariant("indexed order %s price %d does not match ladder cell %d", id, order.Price, price)
		}
	}
}

// checkNotCrossedLocked verifies invariant 3: the book is never crossed
// at rest when both sides are non-empty.
func (b *OrderBook) checkNotCrossedLocked() {
	bid, bidOk := b.bids.BestPrice()
	ask, askOk := b.asks.BestPrice()
	if bidOk && askOk && bid >= ask {
		b.panicInvariant("book crossed: best bid %d >= best ask %d", bid, ask)
	}
}

func (b *OrderBook) panicInvariant(format string, args ...any) {
	panic(fmt.Errorf("%w: "+fmt.Sprintf(format, args...), ErrInvariantViolation))
}
