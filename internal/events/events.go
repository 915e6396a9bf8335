// Package events implements the EventSink collaborator contract from
// spec.md §4.5: a tagged-variant Trade/Bbo event stream the matching core
// publishes to synchronously, decoupled from however the event actually
// reaches a subscriber.
package events

import (
	"time"

	"fenrir/internal/common"
)

// Kind tags which variant an Event carries.
type Kind uint8

const (
	KindTrade Kind = iota
	KindBbo
)

// LevelView is one side of a BBO snapshot: best price and aggregate
// resting qty at that price (spec.md §4.4).
type LevelView struct {
	Price common.Price
	Qty   common.Qty
}

// Bbo is the best-bid/best-offer snapshot of a symbol. Bids/Asks are
// empty slices when that side of the book has no resting orders.
type Bbo struct {
	Bids []LevelView
	Asks []LevelView
}

// TradeEvent mirrors one common.Trade onto the wire.
type TradeEvent struct {
	Symbol        string
	Price         common.Price
	Qty           common.Qty
	AggressorSide common.Side
	MakerOrderID  string
	TakerOrderID  string
	Timestamp     time.Time
}

// BboEvent reports the post-mutation top-of-book for a symbol.
type BboEvent struct {
	Symbol string
	Bbo    Bbo
}

// Event is a closed tagged variant: exactly one of Trade/Bbo is set,
// selected by Kind.
type Event struct {
	Kind  Kind
	Trade TradeEvent
	Bbo   BboEvent
}

// Sink is the abstract consumer of emitted market-data events (spec.md
// §4.5). Publish must not block the matching path beyond a bounded
// enqueue cost.
type Sink interface {
	Publish(Event)
}

// NopSink discards every event. Useful for tests that only care about
// book state, not event plumbing.
type NopSink struct{}

func (NopSink) Publish(Event) {}

var _ Sink = NopSink{}
