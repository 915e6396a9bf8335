// Package engine implements the per-symbol matching core of spec.md §4:
// a two-sided price-time-priority limit order book. It owns no transport,
// no logging, and no configuration parsing — those are the external
// collaborators (internal/wire, internal/api) spec.md §1 deliberately
// keeps out of the core.
package engine

import (
	"errors"
	"sync"

	"fenrir/internal/book"
	"fenrir/internal/clock"
	"fenrir/internal/common"
	"fenrir/internal/events"
)

var (
	// ErrInvalidOrder is returned for usage errors spec.md §9 says should
	// be rejected at the boundary rather than inherit undefined core
	// behavior: missing price for a priced type, qty <= 0, FOK on a
	// market order, or an id still active in this book.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderNotFound names the not-found case as an error value. No
	// OrderBook method returns it; Cancel reports absence as a bool per
	// spec.md §4.3.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvariantViolation marks a matching-core bug. Per spec.md §7 an
	// invariant violation must crash the core, never silently recover;
	// checkInvariantsLocked panics with this wrapped in, it is never returned
	// as a normal error.
	ErrInvariantViolation = errors.New("order book invariant violation")
)

// Outcome is the structured result of a Submit call (spec.md §4.2).
type Outcome struct {
	Status common.Status
	Trades []common.Trade
}

// OrderBook owns both ladders, the resting-order id index, and a bounded
// trade log for exactly one symbol. A book instance services one Submit
// or Cancel at a time (spec.md §5 single-writer model); mu enforces this
// and also serializes queries against writers so snapshots satisfy §3's
// invariants.
type OrderBook struct {
	Symbol string

	mu    sync.Mutex
	bids  *book.Ladder // descending: best = highest price
	asks  *book.Ladder // ascending: best = lowest price
	index map[string]*common.Order

	trades *tradeLog

	sink  events.Sink
	clock clock.Clock

	// debugInvariants, when set, runs checkInvariantsLocked after every
	// mutation and panics on violation (spec.md §7: "An invariant
	// checker may run in debug/test builds after every mutation").
	debugInvariants bool
}

// New constructs an empty order book for symbol, publishing events to
// sink and using clk for timestamps/ids.
func New(symbol string, sink events.Sink, clk clock.Clock) *OrderBook {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &OrderBook{
		Symbol: symbol,
		bids:   book.New(func(a, b common.Price) bool { return a > b }),
		asks:   book.New(func(a, b common.Price) bool { return a < b }),
		index:  make(map[string]*common.Order),
		trades: newTradeLog(defaultTradeLogCapacity),
		sink:   sink,
		clock:  clk,
	}
}

// EnableInvariantChecks turns on the post-mutation invariant walk. Tests
// and a -debug-invariants config flag use this; production does not, to
// keep matching O(1)-ish instead of O(book size) per call.
func (b *OrderBook) EnableInvariantChecks() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.debugInvariants = true
}

func (b *OrderBook) ladders(side common.Side) (own, opp *book.Ladder) {
	if side == common.Buy {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

// validate rejects usage errors at the boundary per spec.md §9's
// resolved Open Questions, before any state is touched.
func (b *OrderBook) validate(order common.Order) error {
	if order.Qty == 0 {
		return ErrInvalidOrder
	}
	if order.OrderType.Priced() && order.Price <= 0 {
		return ErrInvalidOrder
	}
	if order.OrderType == common.FOK && !order.OrderType.Priced() {
		// unreachable given Priced()'s current definition, kept explicit
		// because spec.md §9 calls this case out by name.
		return ErrInvalidOrder
	}
	if _, exists := b.index[order.ID]; exists {
		return ErrInvalidOrder
	}
	return nil
}

// Submit accepts a new order, matches it against resting liquidity,
// mutates the book, and returns the structured outcome of spec.md §4.2.
func (b *OrderBook) Submit(order common.Order) (Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.validate(order); err != nil {
		return Outcome{}, err
	}

	order.Remaining = order.Qty
	order.Ts = b.clock.NowNanos()

	if order.OrderType == common.FOK {
		if !b.fokPrecheck(order) {
			return Outcome{Status: common.StatusRejected}, nil
		}
	}

	_, opp := b.ladders(order.Side)
	trades := b.match(&order, opp)

	status := classify(order, trades)
	if status == common.StatusResting {
		own, _ := b.ladders(order.Side)
		resting := order
		own.Insert(&resting)
		b.index[resting.ID] = &resting
	}

	b.publishTrades(trades)
	b.publishBbo()

	if b.debugInvariants {
		b.checkInvariantsLocked()
	}

	return Outcome{Status: status, Trades: trades}, nil
}

// classify implements spec.md §4.2's status table.
func classify(order common.Order, trades []common.Trade) common.Status {
	if order.Remaining == 0 {
		return common.StatusFilled
	}
	switch order.OrderType {
	case common.Limit:
		return common.StatusResting
	case common.Market:
		if len(trades) > 0 {
			return common.StatusPartial
		}
		return common.StatusUnfilled
	case common.IOC:
		if len(trades) > 0 {
			return common.StatusPartial
		}
		return common.StatusCancelled
	case common.FOK:
		// Unreachable: the precheck guarantees a full fill.
		return common.StatusRejected
	default:
		return common.StatusRejected
	}
}

// fokPrecheck walks the opposite ladder best-first, summing remaining
// qty within the order's limit, halting as soon as the sum covers
// order.Qty, the price bound is crossed, or the ladder is exhausted
// (spec.md §4.2). It performs no mutation.
func (b *OrderBook) fokPrecheck(order common.Order) bool {
	_, opp := b.ladders(order.Side)
	var sum common.Qty
	opp.ScanFromBest(func(lvl *book.Level) bool {
		if order.Side == common.Buy && order.Price < lvl.Price {
			return false
		}
		if order.Side == common.Sell && order.Price > lvl.Price {
			return false
		}
		sum += lvl.Qty()
		return sum < order.Qty
	})
	return sum >= order.Qty
}

// match runs the matching loop of spec.md §4.2 against opp, mutating
// order.Remaining and opp's resting orders in place, and returns the
// trades produced in match order (best-price-first, then FIFO).
func (b *OrderBook) match(order *common.Order, opp *book.Ladder) []common.Trade {
	var trades []common.Trade

	for order.Remaining > 0 {
		price, ok := opp.BestPrice()
		if !ok {
			break
		}
		if order.OrderType.Priced() {
			if order.Side == common.Buy && order.Price < price {
				break
			}
			if order.Side == common.Sell && order.Price > price {
				break
			}
		}

		maker, ok := opp.PeekHead(price)
		if !ok {
			break
		}

		qty := order.Remaining
		if maker.Remaining < qty {
			qty = maker.Remaining
		}

		trade := common.Trade{
			TradeID:       b.clock.NewID(),
			Symbol:        b.Symbol,
			Price:         price, // maker-price rule, spec.md §3 invariant 6
			Qty:           qty,
			AggressorSide: order.Side,
			MakerOrderID:  maker.ID,
			TakerOrderID:  order.ID,
			Timestamp:     b.clock.NowUTC(),
		}
		trades = append(trades, trade)
		b.trades.append(trade)

		order.Remaining -= qty
		maker.Remaining -= qty

		if maker.Remaining == 0 {
			popped := opp.PopHeadIfZero(price)
			if popped != nil {
				delete(b.index, popped.ID)
			}
		}
	}

	return trades
}

// Cancel removes a resting order from the book. It is not an error for
// id to be absent; the bool return is the spec.md §4.3 signal.
func (b *OrderBook) Cancel(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.index[id]
	if !ok {
		return false
	}

	own, _ := b.ladders(order.Side)
	own.RemoveByID(order)
	delete(b.index, id)

	b.publishBbo()

	if b.debugInvariants {
		b.checkInvariantsLocked()
	}
	return true
}

func (b *OrderBook) publishTrades(trades []common.Trade) {
	for _, t := range trades {
		b.sink.Publish(events.Event{
			Kind: events.KindTrade,
			Trade: events.TradeEvent{
				Symbol:        t.Symbol,
				Price:         t.Price,
				Qty:           t.Qty,
				AggressorSide: t.AggressorSide,
				MakerOrderID:  t.MakerOrderID,
				TakerOrderID:  t.TakerOrderID,
				Timestamp:     t.Timestamp,
			},
		})
	}
}

func (b *OrderBook) publishBbo() {
	b.sink.Publish(events.Event{
		Kind: events.KindBbo,
		Bbo: events.BboEvent{
			Symbol: b.Symbol,
			Bbo:    b.bboLocked(),
		},
	})
}
