package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/common"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/utils"
)

const (
	MaxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
	ErrUnknownSymbol      = errors.New("unknown symbol")
)

// ClientSession is one connected TCP client, tracked by the username it
// supplied on its first order.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a parsed message to the connection it arrived on.
type ClientMessage struct {
	connAddress string
	message     Message
}

// Server is the TCP binary protocol collaborator of SPEC_FULL.md §6.2,
// generalized from the teacher's internal/net.Server from one
// process-wide Engine interface over a single asset class to a
// registry of independent per-symbol books. Grounded on
// internal/net/server.go's tomb-supervised accept loop, worker pool,
// and session-handler shape.
type Server struct {
	address  string
	port     int
	registry *engine.Registry
	symbols  config.Config

	pool   utils.WorkerPool
	cancel context.CancelFunc

	mu sync.Mutex
	// sessions is keyed by username: the teacher's ReportTrade/ReportError
	// route by Owner (username), so sessions are tracked the same way here
	// rather than by connection address, fixing the teacher's mismatch
	// between the key it inserts under (LocalAddr) and the key it looks up
	// with (Owner).
	sessions map[string]ClientSession
	// connUsername maps a live connection's remote address back to the
	// username that last used it, so a dead connection can be cleaned out
	// of sessions without the read loop needing to track it separately.
	connUsername map[string]string
	// owners maps an order id to the username that submitted it, so a
	// trade's maker and taker sides can each be routed a report even
	// though common.Order itself carries no ownership field.
	owners map[string]string

	clientMessages chan ClientMessage
}

// New constructs a wire server. registry must already have every
// tradeable symbol registered; orders for a symbol the registry does not
// hold are rejected with ErrUnknownSymbol before they reach an engine.
// symbols.Workers sizes the connection worker pool (defaultNWorkers when
// it is not positive).
func New(address string, port int, registry *engine.Registry, symbols config.Config) *Server {
	workers := symbols.Workers
	if workers <= 0 {
		workers = defaultNWorkers
	}
	return &Server{
		address:        address,
		port:           port,
		registry:       registry,
		symbols:        symbols,
		pool:           utils.NewWorkerPool(workers),
		sessions:       make(map[string]ClientSession),
		connUsername:   make(map[string]string),
		owners:         make(map[string]string),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("wire server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run blocks, serving connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start wire listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close wire listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("wire server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting wire client")
				continue
			}
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.clientMessages:
			if err := s.handleMessage(msg); err != nil {
				log.Error().
					Err(err).
					Str("connAddress", msg.connAddress).
					Msg("error handling wire message")
				s.reportError(msg.connAddress, err)
			}
		}
	}
}

func (s *Server) handleMessage(msg ClientMessage) error {
	switch msg.message.GetType() {
	case NewOrder:
		m, ok := msg.message.(NewOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		return s.handleNewOrder(msg.connAddress, m)
	case CancelOrder:
		m, ok := msg.message.(CancelOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		return s.handleCancelOrder(m)
	case LogBook:
		s.logBooks()
		return nil
	case Heartbeat:
		return nil
	default:
		log.Error().Int("messageType", int(msg.message.GetType())).Msg("invalid wire message type")
		return ErrInvalidMessageType
	}
}

func (s *Server) handleNewOrder(connAddress string, m NewOrderMessage) error {
	book, ok := s.registry.Book(m.Symbol)
	if !ok {
		return ErrUnknownSymbol
	}

	s.registerSession(connAddress, m.Username)

	order := m.Order()
	s.mu.Lock()
	s.owners[order.ID] = m.Username
	s.mu.Unlock()

	outcome, err := book.Submit(order)
	if err != nil {
		return err
	}
	s.reportTrades(m.Symbol, outcome.Trades)
	return nil
}

func (s *Server) handleCancelOrder(m CancelOrderMessage) error {
	book, ok := s.registry.Book(m.Symbol)
	if !ok {
		return ErrUnknownSymbol
	}
	book.Cancel(m.OrderID)
	return nil
}

func (s *Server) logBooks() {
	for _, symbol := range s.registry.Symbols() {
		book, ok := s.registry.Book(symbol)
		if !ok {
			continue
		}
		bbo := book.Bbo()
		log.Info().
			Str("symbol", symbol).
			Interface("bids", bbo.Bids).
			Interface("asks", bbo.Asks).
			Msg("book snapshot")
	}
}

// reportTrades pushes one execution report to every connected session on
// either side of each trade, the way the teacher's ReportTrade notifies
// both Party and CounterParty.
func (s *Server) reportTrades(symbol string, trades []common.Trade) {
	for _, trade := range trades {
		s.mu.Lock()
		makerUser := s.owners[trade.MakerOrderID]
		takerUser := s.owners[trade.TakerOrderID]
		s.mu.Unlock()

		s.sendExecutionReport(makerUser, symbol, trade.AggressorSide.Opposite(), trade, trade.TakerOrderID)
		s.sendExecutionReport(takerUser, symbol, trade.AggressorSide, trade, trade.MakerOrderID)
	}
}

func (s *Server) sendExecutionReport(username, symbol string, side common.Side, trade common.Trade, counterpartyOrderID string) {
	if username == "" {
		return
	}
	s.mu.Lock()
	session, ok := s.sessions[username]
	s.mu.Unlock()
	if !ok {
		return
	}

	ownOrderID := trade.TakerOrderID
	if side != trade.AggressorSide {
		ownOrderID = trade.MakerOrderID
	}
	report := executionReport(symbol, side, trade.Price, trade.Qty, ownOrderID, counterpartyOrderID, trade.Timestamp)
	if _, err := session.conn.Write(report); err != nil {
		log.Error().Err(err).Str("username", username).Msg("unable to deliver execution report")
		s.dropSession(username)
	}
}

func (s *Server) reportError(connAddress string, reportErr error) {
	s.mu.Lock()
	username, ok := s.connUsername[connAddress]
	var session ClientSession
	if ok {
		session, ok = s.sessions[username]
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	report := errorReport(reportErr)
	if _, err := session.conn.Write(report); err != nil {
		log.Error().Err(err).Str("username", username).Msg("unable to deliver error report")
		s.dropSession(username)
	}
}

func (s *Server) registerSession(connAddress, username string) {
	if username == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connUsername[connAddress] = username
}

func (s *Server) bindSessionConn(connAddress, username string, conn net.Conn) {
	if username == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[username] = ClientSession{conn: conn}
	s.connUsername[connAddress] = username
}

func (s *Server) dropSession(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, username)
}

func (s *Server) dropConn(connAddress string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if username, ok := s.connUsername[connAddress]; ok {
		if session, ok := s.sessions[username]; ok && session.conn.RemoteAddr().String() == connAddress {
			delete(s.sessions, username)
		}
	}
	delete(s.connUsername, connAddress)
}

// handleConnection reads exactly one message off conn, hands it to the
// session handler, and requeues the connection for its next message —
// the teacher's short-lived-worker shape, generalized to also bind the
// session the first time a username shows up on the connection.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	connAddress := conn.RemoteAddr().String()

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", connAddress).Msg("failed setting deadline")
		_ = conn.Close()
		return nil
	}

	buffer := make([]byte, MaxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			s.dropConn(connAddress)
			_ = conn.Close()
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", connAddress).Msg("error parsing wire message")
			_ = conn.Close()
			return nil
		}

		if nom, ok := message.(NewOrderMessage); ok {
			s.bindSessionConn(connAddress, nom.Username, conn)
		}

		s.clientMessages <- ClientMessage{connAddress: connAddress, message: message}
		s.pool.AddTask(conn)
	}
	return nil
}
