// Package book implements the price-ordered ladder described in spec.md
// §4.1: a map from price to a FIFO queue of resting orders, with O(log n)
// level insert/remove. Best-price access is also O(log n): it walks the
// btree down to its first item and is not cached. Grounded on the
// teacher's internal/engine/orderbook.go, which keeps exactly this shape
// (a tidwall/btree BTreeG of *PriceLevel) inline inside the OrderBook;
// here it is generalized into its own package and made to serve either
// side of the book via the comparator passed to New.
package book

import (
	"github.com/tidwall/btree"

	"fenrir/internal/common"
)

// Level is one price point: the price itself and the FIFO queue of
// resting orders at that price, oldest first (price-time priority within
// a level, spec.md §3 invariant 4).
type Level struct {
	Price  common.Price
	Orders []*common.Order
}

// Qty sums the remaining quantity of every order at this level (spec.md
// §3 invariant 1).
func (l *Level) Qty() common.Qty {
	var total common.Qty
	for _, o := range l.Orders {
		total += o.Remaining
	}
	return total
}

// Ladder is one side of a book: bids (best = highest price) or asks
// (best = lowest price), selected by the less function passed to New.
type Ladder struct {
	levels *btree.BTreeG[*Level]
}

// New builds a Ladder. less must order by Price only; Bids should pass a
// "greater than" comparator (descending) and Asks an ascending one, the
// same convention the teacher uses for its bid/ask BTreeG instances.
func New(less func(a, b common.Price) bool) *Ladder {
	return &Ladder{
		levels: btree.NewBTreeG(func(a, b *Level) bool {
			return less(a.Price, b.Price)
		}),
	}
}

// BestPrice returns the best (first-in-priority) price, if any.
func (l *Ladder) BestPrice() (common.Price, bool) {
	lvl, ok := l.levels.MinMut()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestLevel returns the level at the best price, if any.
func (l *Ladder) BestLevel() (*Level, bool) {
	return l.levels.MinMut()
}

// PeekHead returns the oldest resting order at price, without removing it.
func (l *Ladder) PeekHead(price common.Price) (*common.Order, bool) {
	lvl, ok := l.levels.GetMut(&Level{Price: price})
	if !ok || len(lvl.Orders) == 0 {
		return nil, false
	}
	return lvl.Orders[0], true
}

// Insert appends order to the FIFO queue at order.Price, creating the
// level if it didn't already exist.
func (l *Ladder) Insert(order *common.Order) {
	if lvl, ok := l.levels.GetMut(&Level{Price: order.Price}); ok {
		lvl.Orders = append(lvl.Orders, order)
		return
	}
	l.levels.Set(&Level{Price: order.Price, Orders: []*common.Order{order}})
}

// PopHeadIfZero pops the head order at price if its Remaining has reached
// zero, deleting the level if it is now empty. Returns the popped order,
// or nil if the head still has quantity left (or the level doesn't
// exist).
func (l *Ladder) PopHeadIfZero(price common.Price) *common.Order {
	lvl, ok := l.levels.GetMut(&Level{Price: price})
	if !ok || len(lvl.Orders) == 0 {
		return nil
	}
	head := lvl.Orders[0]
	if head.Remaining != 0 {
		return nil
	}
	lvl.Orders = lvl.Orders[1:]
	if len(lvl.Orders) == 0 {
		l.levels.Delete(&Level{Price: price})
	}
	return head
}

// RemoveByID removes a specific resting order from its price level (a
// linear scan within the level, acceptable per spec.md §4.1 since levels
// are typically short), deleting the level if it becomes empty. Reports
// whether the order was found.
func (l *Ladder) RemoveByID(order *common.Order) bool {
	lvl, ok := l.levels.GetMut(&Level{Price: order.Price})
	if !ok {
		return false
	}
	for i, o := range lvl.Orders {
		if o.ID == order.ID {
			lvl.Orders = append(lvl.Orders[:i], lvl.Orders[i+1:]...)
			if len(lvl.Orders) == 0 {
				l.levels.Delete(&Level{Price: order.Price})
			}
			return true
		}
	}
	return false
}

// IterFromBest yields up to n (price, level) pairs in priority order, for
// depth snapshots.
func (l *Ladder) IterFromBest(n int) []*Level {
	if n <= 0 {
		return nil
	}
	out := make([]*Level, 0, n)
	l.levels.Scan(func(lvl *Level) bool {
		out = append(out, lvl)
		return len(out) < n
	})
	return out
}

// ScanFromBest walks every level in priority order, calling visit until
// it returns false or the ladder is exhausted. Unlike IterFromBest it
// does not allocate a result slice, making it suitable for the FOK
// precheck's early-exit scan over a potentially deep book.
func (l *Ladder) ScanFromBest(visit func(*Level) bool) {
	l.levels.Scan(visit)
}

// Empty reports whether the ladder currently holds no price levels.
func (l *Ladder) Empty() bool {
	return l.levels.Len() == 0
}
