package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"fenrir/internal/ringbuf"
)

// defaultFanoutBuffer sizes the internal ring used to decouple Publish
// from slow subscribers, mirroring ejyy-femto_go's DISTRIBUTOR_BUFFER
// sizing for its output ring.
const defaultFanoutBuffer = 1024

// ChannelSink is the concrete, bounded, non-blocking Sink handed to every
// engine.OrderBook in production. It is grounded on two pack sources: the
// teacher's Server.ReportTrade/ReportError dispatch-to-connected-clients
// shape in internal/net/server.go, and ejyy-femto_go's
// events_ring.go/message_bus.go ring-buffer event distribution. Publish
// never blocks the matching path: it is a single non-blocking ring push
// plus a signal to the fan-out goroutine.
type ChannelSink struct {
	ring   *ringbuf.Ring[Event]
	notify chan struct{}

	mu   sync.RWMutex
	subs []chan<- Event
}

// NewChannelSink starts the fan-out goroutine and returns a ready sink.
// Stop must be called to release it.
func NewChannelSink() *ChannelSink {
	s := &ChannelSink{
		ring:   ringbuf.New[Event](defaultFanoutBuffer),
		notify: make(chan struct{}, 1),
	}
	go s.loop()
	return s
}

// Subscribe registers a channel to receive every published event from
// this point forward. The channel must be drained by the caller; a full
// subscriber channel causes that event to be dropped for that subscriber
// only (logged, never blocking the fan-out goroutine or the matching
// path).
func (s *ChannelSink) Subscribe(ch chan<- Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, ch)
}

// Unsubscribe removes a previously subscribed channel. It does not close
// ch; the caller (Hub) owns that.
func (s *ChannelSink) Unsubscribe(ch chan<- Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// Stop shuts down the fan-out goroutine. The sink must not be published
// to afterward.
func (s *ChannelSink) Stop() {
	close(s.notify)
}

// Publish implements Sink. It never blocks: the ring overwrites its
// oldest slot if the fan-out goroutine has fallen behind.
func (s *ChannelSink) Publish(e Event) {
	s.ring.Push(e)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *ChannelSink) loop() {
	var cursor uint64
	for range s.notify {
		var batch []Event
		batch, cursor = s.ring.Since(cursor)
		for _, e := range batch {
			s.dispatch(e)
		}
	}
}

func (s *ChannelSink) dispatch(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		select {
		case sub <- e:
		default:
			log.Warn().Msg("event subscriber full, dropping event")
		}
	}
}

var _ Sink = (*ChannelSink)(nil)
