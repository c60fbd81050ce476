// Package server is the TCP session server: it accepts connections, reads
// net.Message frames off them, and dispatches each to the per-symbol
// matching engine its ticker names. It owns no matching logic itself — the
// demo multi-symbol router the original exchange shipped is kept here only
// as a thin dispatch table, not a core concern.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/axiomex/clobengine/internal/common"
	netw "github.com/axiomex/clobengine/internal/net"
	"github.com/axiomex/clobengine/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
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

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn     net.Conn
	username string
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       netw.Message
}

// Engine is the subset of engine.Engine this server depends on. A real
// *engine.Engine satisfies this directly; tests substitute a fake.
type Engine interface {
	Symbol() string
	AddLimit(order common.Order) ([]common.Event, error)
	AddMarket(order common.Order) ([]common.Event, error)
	AddIOC(order common.Order) ([]common.Event, error)
	AddFOK(order common.Order) ([]common.Event, error)
	Cancel(id common.OrderId) (common.Event, error)
	Modify(id common.OrderId, newPrice *common.Price, newQuantity *common.Quantity) ([]common.Event, error)
	Snapshot() common.Snapshot
	PublishSnapshot() common.Event
	Events() <-chan common.Event
}

// IDGenerator mints order ids for network-originated orders; it is the
// same interface as internal/idgen.Generator, restated here so this
// package need not import idgen directly.
type IDGenerator interface {
	New() uuid.UUID
}

// Server dispatches client messages to one matching engine per symbol.
type Server struct {
	address string
	port    int
	idGen   IDGenerator

	engines map[string]Engine

	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
}

// New builds a server dispatching across the given engines, keyed by their
// own Symbol().
func New(address string, port int, idGen IDGenerator, engines ...Engine) *Server {
	bySymbol := make(map[string]Engine, len(engines))
	for _, e := range engines {
		bySymbol[e.Symbol()] = e
	}
	return &Server{
		address:        address,
		port:           port,
		idGen:          idGen,
		engines:        bySymbol,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Int("symbols", len(s.engines)).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			s.addClientSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// BroadcastTrade sends the execution report pair for a fill to both
// counterparties, resolved by client id (the Username carried on their
// orders). A counterparty with no live session on this server instance is
// skipped rather than erroring the whole broadcast.
func (s *Server) BroadcastTrade(trade common.Trade, buyerClientID, sellerClientID string) error {
	buyerReport, sellerReport, err := netw.TradeReportsOwners(trade, buyerClientID, sellerClientID)
	if err != nil {
		return err
	}
	s.sendToClientID(buyerClientID, buyerReport)
	s.sendToClientID(sellerClientID, sellerReport)
	return nil
}

// BroadcastEvent forwards an OrderAdded/Cancelled/Modified event to the
// owning client, if it carries one and that client is connected.
func (s *Server) BroadcastEvent(ev common.Event, ownerClientID string) error {
	report, ok, err := netw.EventReportBytes(ev)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.sendToClientID(ownerClientID, report)
	return nil
}

func (s *Server) sendToClientID(clientID string, report []byte) {
	if clientID == "" {
		return
	}
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	for addr, session := range s.clientSessions {
		if session.username != clientID {
			continue
		}
		if _, err := session.conn.Write(report); err != nil {
			log.Error().Err(err).Str("address", addr).Msg("unable to send report")
			delete(s.clientSessions, addr)
		}
	}
}

func (s *Server) ReportError(clientAddress string, sourceErr error) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	report, err := netw.ErrorReportBytes(sourceErr)
	if err != nil {
		return err
	}

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return ErrClientDoesNotExist
	}

	if _, err := client.conn.Write(report); err != nil {
		delete(s.clientSessions, clientAddress)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// sessionHandler reads off incoming messages from clients and handles
// high-level session logic. Messages are received from the pool of
// workers.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			if err := s.handleMessage(message); err != nil {
				log.Error().
					Err(err).
					Str("clientAddress", message.clientAddress).
					Msg("error handling message")
				s.ReportError(message.clientAddress, err)
			}
		}
	}
}

func (s *Server) handleMessage(message ClientMessage) error {
	switch message.message.GetType() {
	case netw.NewOrder:
		msg, ok := message.message.(netw.NewOrderMessage)
		if !ok {
			return netw.ErrInvalidMessageType
		}
		s.setSessionUsername(message.clientAddress, msg.Username)

		eng, ok := s.engines[msg.Ticker]
		if !ok {
			return ErrUnknownSymbol
		}
		order := msg.Order(s.idGen.New(), time.Now())

		var (
			events []common.Event
			err    error
		)
		switch msg.OrderType {
		case common.Market:
			events, err = eng.AddMarket(order)
		case common.Limit:
			events, err = eng.AddLimit(order)
		case common.IOC:
			events, err = eng.AddIOC(order)
		case common.FOK:
			events, err = eng.AddFOK(order)
		default:
			return common.ErrInvalidOrderType
		}
		if err != nil {
			log.Error().
				Err(err).
				Str("clientAddress", message.clientAddress).
				Msg("error while placing order")
			return err
		}
		s.dispatchEvents(events)
	case netw.CancelOrder:
		msg, ok := message.message.(netw.CancelOrderMessage)
		if !ok {
			return netw.ErrInvalidMessageType
		}
		ev, err := s.cancelAnyEngine(msg.OrderID)
		if err != nil {
			log.Error().
				Err(err).
				Str("clientAddress", message.clientAddress).
				Str("orderId", msg.OrderID.String()).
				Msg("error while cancelling order")
			return err
		}
		s.dispatchEvents([]common.Event{ev})
	case netw.ModifyOrder:
		msg, ok := message.message.(netw.ModifyOrderMessage)
		if !ok {
			return netw.ErrInvalidMessageType
		}
		price, qty := msg.PriceQuantity()
		events, err := s.modifyAnyEngine(msg.OrderID, price, qty)
		if err != nil {
			log.Error().
				Err(err).
				Str("clientAddress", message.clientAddress).
				Str("orderId", msg.OrderID.String()).
				Msg("error while modifying order")
			return err
		}
		s.dispatchEvents(events)
	case netw.LogBook:
		for symbol, eng := range s.engines {
			ev := eng.PublishSnapshot()
			snap := ev.Snapshot
			log.Info().
				Str("symbol", symbol).
				Int("bidLevels", len(snap.Bids)).
				Int("askLevels", len(snap.Asks)).
				Uint64("lastTradePrice", uint64(snap.LastTradePrice)).
				Msg("book snapshot")
		}
	default:
		log.Error().
			Int("messageType", int(message.message.GetType())).
			Any("message", message).
			Msg("invalid message type")
		return netw.ErrInvalidMessageType
	}
	return nil
}

// cancelAnyEngine and modifyAnyEngine are used when a client references an
// order id without naming its symbol (the wire Cancel/Modify frames carry
// no ticker). Each resting order belongs to exactly one engine, so trying every engine
// is correct, if not maximally efficient for a server routing many
// symbols; the dispatch table is explicitly a thin convenience, not a
// performance-sensitive core path.
func (s *Server) cancelAnyEngine(id common.OrderId) (common.Event, error) {
	var lastErr error
	for _, eng := range s.engines {
		ev, err := eng.Cancel(id)
		if err == nil {
			return ev, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = common.ErrOrderNotFound
	}
	return common.Event{}, lastErr
}

func (s *Server) modifyAnyEngine(id common.OrderId, price *common.Price, qty *common.Quantity) ([]common.Event, error) {
	var lastErr error
	for _, eng := range s.engines {
		events, err := eng.Modify(id, price, qty)
		if err == nil {
			return events, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = common.ErrOrderNotFound
	}
	return nil, lastErr
}

// dispatchEvents fans out trade and order-added events to their owning
// clients' connections. Owners are resolved purely from the event payload,
// so this never needs to look up the originating connection. OrderCancelled
// and OrderModified events carry no owner client id, so they are not sent
// to any client.
func (s *Server) dispatchEvents(events []common.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case common.EventOrderAdded:
			if err := s.BroadcastEvent(ev, ev.Order.ClientID); err != nil {
				log.Error().Err(err).Msg("error broadcasting order-added event")
			}
		case common.EventTrade:
			if err := s.BroadcastTrade(*ev.Trade, ev.Trade.BuyerClientID, ev.Trade.SellerClientID); err != nil {
				log.Error().Err(err).Msg("error broadcasting trade event")
			}
		default:
			if err := s.BroadcastEvent(ev, ""); err != nil {
				log.Error().Err(err).Msg("error broadcasting event")
			}
		}
	}
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection, parses and passes it forward to
// sessionHandler to handle it. If the connection dies, the client session
// is cleaned up. This method does not lock any client session directly and
// gives up early if the connection is terminated, so it is safe to run
// concurrently across workers.
// Any error returned from here is fatal to the owning tomb.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	defer func() {
		if err := conn.Close(); err != nil {
			log.Error().Str("address", conn.RemoteAddr().String()).Err(err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, MaxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error reading from connection")
			s.deleteClientSession(conn.RemoteAddr().String())
			return nil
		}

		message, err := netw.ParseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
			s.deleteClientSession(conn.RemoteAddr().String())
			return nil
		}

		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: conn.RemoteAddr().String(),
		}

		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

func (s *Server) setSessionUsername(address, username string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session, ok := s.clientSessions[address]
	if !ok {
		return
	}
	session.username = username
	s.clientSessions[address] = session
}

func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}
