// Package api implements the HTTP/WebSocket collaborator of SPEC_FULL.md
// §6.1: a JSON REST surface over the registry plus a push event stream.
// Grounded on the gorilla/mux routing style the pack's
// islandman-trading-system exchange uses for its own order/order-book
// endpoints, generalized to the spec's four order types and the
// registry's multi-symbol books instead of a single implicit market.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"fenrir/internal/common"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/events"
)

const defaultDepthLevels = 5
const maxDepthLevels = 50
const defaultTradeLimit = 50

// Server wires an engine.Registry and an events.Hub behind a
// gorilla/mux router.
type Server struct {
	registry *engine.Registry
	symbols  config.Config
	hub      *events.Hub
	router   *mux.Router
}

// New builds the router. symbols supplies the decimal<->tick conversion
// table; hub backs the /ws push stream.
func New(registry *engine.Registry, symbols config.Config, hub *events.Hub) *Server {
	s := &Server{registry: registry, symbols: symbols, hub: hub}
	s.router = mux.NewRouter()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/order/submit", s.handleSubmitOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/order/cancel/{symbol}/{id}", s.handleCancelOrder).Methods(http.MethodDelete)
	s.router.HandleFunc("/book/bbo/{symbol}", s.handleBbo).Methods(http.MethodGet)
	s.router.HandleFunc("/book/depth/{symbol}", s.handleDepth).Methods(http.MethodGet)
	s.router.HandleFunc("/trades/{symbol}", s.handleTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
}

// ServeHTTP lets Server plug straight into http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// orderRequest is the JSON shape of a POST /order/submit body. Price is
// a decimal string ("101.50") converted at this boundary via the
// symbol's tick table (spec.md §9, §3.1); the core never sees decimals.
type orderRequest struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"order_type"`
	Price     string `json:"price,omitempty"`
	Qty       uint64 `json:"qty"`
}

type tradeView struct {
	TradeID       string `json:"trade_id"`
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Qty           uint64 `json:"qty"`
	AggressorSide string `json:"aggressor_side"`
	MakerOrderID  string `json:"maker_order_id"`
	TakerOrderID  string `json:"taker_order_id"`
}

type outcomeResponse struct {
	Status string      `json:"status"`
	Trades []tradeView `json:"trades"`
}

func parseSide(s string) (common.Side, bool) {
	switch s {
	case "buy":
		return common.Buy, true
	case "sell":
		return common.Sell, true
	default:
		return 0, false
	}
}

func parseOrderType(s string) (common.OrderType, bool) {
	switch s {
	case "limit":
		return common.Limit, true
	case "market":
		return common.Market, true
	case "ioc":
		return common.IOC, true
	case "fok":
		return common.FOK, true
	default:
		return 0, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed writing json response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	symbol, ok := s.symbols.SymbolByName(req.Symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}
	book, ok := s.registry.Book(req.Symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	side, ok := parseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	orderType, ok := parseOrderType(req.OrderType)
	if !ok {
		writeError(w, http.StatusBadRequest, "order_type must be limit, market, ioc, or fok")
		return
	}

	var price common.Price
	if orderType.Priced() {
		if req.Price == "" {
			writeError(w, http.StatusBadRequest, "price is required for this order_type")
			return
		}
		p, err := symbol.ParsePrice(req.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		price = p
	}

	order := common.Order{
		ID:        req.ID,
		Symbol:    req.Symbol,
		Side:      side,
		Price:     price,
		Qty:       common.Qty(req.Qty),
		OrderType: orderType,
	}

	outcome, err := book.Submit(order)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(symbol, outcome))
}

func toOutcomeResponse(symbol config.Symbol, outcome engine.Outcome) outcomeResponse {
	trades := make([]tradeView, len(outcome.Trades))
	for i, t := range outcome.Trades {
		trades[i] = tradeView{
			TradeID:       t.TradeID,
			Symbol:        t.Symbol,
			Price:         symbol.FormatPrice(t.Price),
			Qty:           uint64(t.Qty),
			AggressorSide: t.AggressorSide.String(),
			MakerOrderID:  t.MakerOrderID,
			TakerOrderID:  t.TakerOrderID,
		}
	}
	return outcomeResponse{Status: outcome.Status.String(), Trades: trades}
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	book, ok := s.registry.Book(vars["symbol"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	if !book.Cancel(vars["id"]) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

type levelView struct {
	Price string `json:"price"`
	Qty   uint64 `json:"qty"`
}

type bboResponse struct {
	Symbol string      `json:"symbol"`
	Bids   []levelView `json:"bids"`
	Asks   []levelView `json:"asks"`
}

func (s *Server) handleBbo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbolName := vars["symbol"]
	symbol, book, ok := s.lookupSymbol(symbolName)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	bbo := book.Bbo()
	writeJSON(w, http.StatusOK, bboResponse{
		Symbol: symbolName,
		Bids:   toLevelViews(symbol, bbo.Bids),
		Asks:   toLevelViews(symbol, bbo.Asks),
	})
}

func toLevelViews(symbol config.Symbol, levels []events.LevelView) []levelView {
	out := make([]levelView, len(levels))
	for i, lvl := range levels {
		out[i] = levelView{Price: symbol.FormatPrice(lvl.Price), Qty: uint64(lvl.Qty)}
	}
	return out
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbolName := vars["symbol"]
	symbol, book, ok := s.lookupSymbol(symbolName)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	levels := defaultDepthLevels
	if raw := r.URL.Query().Get("levels"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			levels = n
		}
	}
	if levels > maxDepthLevels {
		levels = maxDepthLevels
	}

	bids, asks := book.Depth(levels)
	writeJSON(w, http.StatusOK, bboResponse{
		Symbol: symbolName,
		Bids:   toDepthViews(symbol, bids),
		Asks:   toDepthViews(symbol, asks),
	})
}

func toDepthViews(symbol config.Symbol, levels []engine.DepthLevel) []levelView {
	out := make([]levelView, len(levels))
	for i, lvl := range levels {
		out[i] = levelView{Price: symbol.FormatPrice(lvl.Price), Qty: uint64(lvl.Qty)}
	}
	return out
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbolName := vars["symbol"]
	symbol, book, ok := s.lookupSymbol(symbolName)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	limit := defaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	recent := book.RecentTrades(limit)
	views := make([]tradeView, len(recent))
	for i, t := range recent {
		views[i] = tradeView{
			TradeID:       t.TradeID,
			Symbol:        t.Symbol,
			Price:         symbol.FormatPrice(t.Price),
			Qty:           uint64(t.Qty),
			AggressorSide: t.AggressorSide.String(),
			MakerOrderID:  t.MakerOrderID,
			TakerOrderID:  t.TakerOrderID,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) lookupSymbol(name string) (config.Symbol, *engine.OrderBook, bool) {
	symbol, ok := s.symbols.SymbolByName(name)
	if !ok {
		return config.Symbol{}, nil, false
	}
	book, ok := s.registry.Book(name)
	if !ok {
		return config.Symbol{}, nil, false
	}
	return symbol, book, true
}
