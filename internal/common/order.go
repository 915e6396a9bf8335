package common

import (
	"fmt"
	"time"
)

// Order is an active or incoming instruction. Resting orders are owned
// exclusively by one book.Ladder cell plus the OrderBook's id index; once
// an Order's Remaining reaches zero or it is cancelled it is never
// reinserted (spec.md §3 ownership & lifecycle).
type Order struct {
	ID        string    // caller-supplied, unique while resting
	Symbol    string    // instrument tag
	Side      Side      // buy or sell
	Price     Price     // ticks; ignored for Market
	Qty       Qty       // original quantity, > 0
	Remaining Qty       // 0 <= Remaining <= Qty
	OrderType OrderType // limit | market | ioc | fok
	Ts        int64     // monotonic nanosecond timestamp set at book-entry
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{ID:%s Symbol:%s Side:%s Type:%s Price:%d Qty:%d Remaining:%d Ts:%d}",
		o.ID, o.Symbol, o.Side, o.OrderType, o.Price, o.Qty, o.Remaining, o.Ts,
	)
}

// Trade is one match event. Trades are never mutated after creation.
type Trade struct {
	TradeID       string
	Symbol        string
	Price         Price
	Qty           Qty
	AggressorSide Side
	MakerOrderID  string
	TakerOrderID  string
	Timestamp     time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{ID:%s Symbol:%s Price:%d Qty:%d Aggressor:%s Maker:%s Taker:%s Ts:%s}",
		t.TradeID, t.Symbol, t.Price, t.Qty, t.AggressorSide,
		t.MakerOrderID, t.TakerOrderID, t.Timestamp.Format(time.RFC3339Nano),
	)
}
