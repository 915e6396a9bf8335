package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"fenrir/internal/events"
)

// wsSendBuffer sizes each websocket client's event channel, matching
// the ChannelSink's own fan-out buffer sizing philosophy: bounded, with
// drops preferred over blocking the hub.
const wsSendBuffer = 256

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Market data is non-sensitive and read-only from the client's
	// perspective; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is the JSON wire shape pushed to every websocket subscriber,
// translating events.Event's tagged Go variant into a single
// discriminated JSON object.
type wsEvent struct {
	Kind   string `json:"kind"`
	Symbol string `json:"symbol"`

	Price         *string `json:"price,omitempty"`
	Qty           *uint64 `json:"qty,omitempty"`
	AggressorSide string  `json:"aggressor_side,omitempty"`
	MakerOrderID  string  `json:"maker_order_id,omitempty"`
	TakerOrderID  string  `json:"taker_order_id,omitempty"`

	Bids []levelView `json:"bids,omitempty"`
	Asks []levelView `json:"asks,omitempty"`
}

func (s *Server) toWsEvent(e events.Event) wsEvent {
	switch e.Kind {
	case events.KindTrade:
		symbol, _ := s.symbols.SymbolByName(e.Trade.Symbol)
		price := symbol.FormatPrice(e.Trade.Price)
		qty := uint64(e.Trade.Qty)
		return wsEvent{
			Kind:          "trade",
			Symbol:        e.Trade.Symbol,
			Price:         &price,
			Qty:           &qty,
			AggressorSide: e.Trade.AggressorSide.String(),
			MakerOrderID:  e.Trade.MakerOrderID,
			TakerOrderID:  e.Trade.TakerOrderID,
		}
	case events.KindBbo:
		symbol, _ := s.symbols.SymbolByName(e.Bbo.Symbol)
		return wsEvent{
			Kind:   "bbo",
			Symbol: e.Bbo.Symbol,
			Bids:   toLevelViews(symbol, e.Bbo.Bbo.Bids),
			Asks:   toLevelViews(symbol, e.Bbo.Bbo.Asks),
		}
	default:
		return wsEvent{Kind: "unknown"}
	}
}

// handleWebsocket upgrades the connection and streams every engine
// event to it until the client disconnects. One goroutine per
// connection drains the subscriber channel and writes JSON frames;
// Hub.Leave tears the subscription down on exit, mirroring the wire
// server's per-connection session lifecycle.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch, id := s.hub.Join(wsSendBuffer)
	defer s.hub.Leave(id)
	defer conn.Close()

	// Drain and discard anything the client sends; this stream is
	// push-only. A failing read is how we detect the client going away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for e := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(s.toWsEvent(e)); err != nil {
			return
		}
	}
}
