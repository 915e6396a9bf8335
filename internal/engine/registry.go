package engine

import (
	"sync"

	"fenrir/internal/clock"
	"fenrir/internal/events"
)

// Registry owns the process-wide map of symbol -> OrderBook. spec.md §9
// flags the teacher's process-wide globals (a books map, a client list) as
// something a production rewrite should make explicit and passed by
// reference rather than kept as package state; Registry is that explicit
// object, constructed once by cmd/server/main.go and handed to every
// collaborator.
type Registry struct {
	sink  events.Sink
	clock clock.Clock

	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewRegistry creates an empty registry. Every book it creates publishes
// to sink and timestamps with clk.
func NewRegistry(sink events.Sink, clk clock.Clock) *Registry {
	return &Registry{
		sink:  sink,
		clock: clk,
		books: make(map[string]*OrderBook),
	}
}

// AddSymbol registers a new, empty book for symbol. Calling it twice for
// the same symbol replaces the existing (presumably still-empty) book;
// callers should only do this during startup.
func (r *Registry) AddSymbol(symbol string) *OrderBook {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := New(symbol, r.sink, r.clock)
	r.books[symbol] = b
	return b
}

// Book returns the book for symbol, or false if the symbol is unknown
// (spec.md §6: "Unknown symbol: 404-class error" — that classification
// happens in the collaborator that calls this, not here).
func (r *Registry) Book(symbol string) (*OrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[symbol]
	return b, ok
}

// Symbols returns every registered symbol, in no particular order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.books))
	for s := range r.books {
		out = append(out, s)
	}
	return out
}
