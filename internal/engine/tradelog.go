package engine

import (
	"sync"

	"fenrir/internal/common"
)

// defaultTradeLogCapacity bounds the in-memory trade_log (spec.md §3:
// "a bounded append-only trade_log"). 1<<16 mirrors ejyy-femto_go's
// RING_SIZE sizing for a single hot instrument's worth of executions.
const defaultTradeLogCapacity = 1 << 16

// tradeLog is a bounded, append-only record of every trade this book has
// produced, used to serve spec.md §4.4's "recent trades(limit)" query.
// It does not use internal/ringbuf because query order for trades is a
// simple tail, not an event-fanout cursor; a plain capped slice is the
// simplest correct structure and matches the teacher's
// Trade.String()-oriented, non-streaming usage of trades.
type tradeLog struct {
	mu       sync.Mutex
	capacity int
	entries  []common.Trade
}

func newTradeLog(capacity int) *tradeLog {
	return &tradeLog{capacity: capacity}
}

func (t *tradeLog) append(trade common.Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, trade)
	if len(t.entries) > t.capacity {
		// Drop the oldest half rather than shifting one at a time, to
		// keep this amortized O(1) per append.
		drop := len(t.entries) - t.capacity/2
		t.entries = append([]common.Trade(nil), t.entries[drop:]...)
	}
}

// tail returns the last n entries in insertion order (or fewer, if the
// log holds less).
func (t *tradeLog) tail(n int) []common.Trade {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || len(t.entries) == 0 {
		return nil
	}
	if n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]common.Trade, n)
	copy(out, t.entries[len(t.entries)-n:])
	return out
}
