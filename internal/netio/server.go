// Package netio is the TCP front end that lets strategy clients place and
// cancel orders against a running exchange.Exchange and receive execution
// and error reports back: a tomb-supervised listener plus a worker-pool
// accept loop feeding decoded netproto messages to a single session
// handler.
package netio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ajmal017/pyquant/internal/common"
	"github.com/ajmal017/pyquant/internal/exchange"
	"github.com/ajmal017/pyquant/internal/netproto"
	"github.com/ajmal017/pyquant/internal/netutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers     = 10
	defaultConnTimeout  = 30 * time.Second
)

var (
	ErrImproperConversion = errors.New("improper task type for worker")
	ErrUnknownClientOrder = errors.New("unknown client order id")
)

// Engine is the subset of exchange.Exchange the server drives. Kept as an
// interface so tests can swap in a fake.
type Engine interface {
	PlaceOrder(desc exchange.OrderDescription) (*common.Order, []common.Trade, error)
	CancelOrder(orderID uint64) error
	LogBook()
}

// session tracks one connected strategy client: its socket and the
// client-chosen order ids it has placed, so a later cancel can be resolved
// back to the internal order id the exchange registry uses.
type session struct {
	conn   net.Conn
	owner  string
	orders map[uuid.UUID]uint64
}

type inboundMessage struct {
	addr string
	msg  netproto.Message
}

// Server is the TCP listener, worker pool and session table that together
// implement the wire protocol.
type Server struct {
	address string
	port    int
	engine  Engine
	pool    netutil.WorkerPool
	cancel  context.CancelFunc

	mu         sync.Mutex
	sessions   map[string]*session // keyed by remote address
	ownerIndex map[string]string   // owner -> remote address, last session wins

	inbound chan inboundMessage
}

func New(address string, port int, engine Engine) *Server {
	return &Server{
		address:    address,
		port:       port,
		engine:     engine,
		pool:       netutil.NewWorkerPool(defaultNWorkers),
		sessions:   make(map[string]*session),
		ownerIndex: make(map[string]string),
		inbound:    make(chan inboundMessage, 16),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("netio server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens until ctx is cancelled, fanning accepted connections out to a
// worker pool and funnelling their decoded messages through a single
// session handler goroutine so engine calls are never concurrent with each
// other from this server's own doing.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Err(err).Msg("closing listener")
		}
	}()
	go func() {
		<-ctx.Done()
		listener.Close() // unblocks Accept
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("netio server running")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("accepting client")
				continue
			}
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) addSession(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = &session{conn: conn, orders: make(map[uuid.UUID]uint64)}
}

func (s *Server) removeSession(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[addr]; ok && sess.owner != "" && s.ownerIndex[sess.owner] == addr {
		delete(s.ownerIndex, sess.owner)
	}
	delete(s.sessions, addr)
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case in := <-s.inbound:
			if err := s.handleMessage(in); err != nil {
				log.Error().Err(err).Str("address", in.addr).Msg("handling message")
				s.sendError(in.addr, err)
			}
		}
	}
}

func (s *Server) handleMessage(in inboundMessage) error {
	switch m := in.msg.(type) {
	case *netproto.NewOrderMessage:
		return s.handleNewOrder(in.addr, m)
	case *netproto.CancelOrderMessage:
		return s.handleCancelOrder(in.addr, m)
	case netproto.BaseMessage:
		switch m.Type() {
		case netproto.LogBook:
			s.engine.LogBook()
			return nil
		case netproto.Heartbeat:
			return nil
		}
	}
	return fmt.Errorf("message type %T: %w", in.msg, netproto.ErrInvalidMessageType)
}

func (s *Server) handleNewOrder(addr string, m *netproto.NewOrderMessage) error {
	desc := exchange.OrderDescription{
		Symbol:    m.Symbol,
		Price:     m.Price,
		Volume:    m.Volume,
		Direction: m.Direction,
		Offset:    m.Offset,
		OrderType: m.OrderType,
		IsHistory: false,
		Owner:     m.Owner,
	}

	s.mu.Lock()
	if sess, ok := s.sessions[addr]; ok {
		sess.owner = m.Owner
		s.ownerIndex[m.Owner] = addr
	}
	s.mu.Unlock()

	order, trades, err := s.engine.PlaceOrder(desc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if sess, ok := s.sessions[addr]; ok {
		sess.orders[m.ClientOrderID] = order.OrderID
	}
	s.mu.Unlock()

	for _, trade := range trades {
		s.reportTrade(trade)
	}
	return nil
}

func (s *Server) handleCancelOrder(addr string, m *netproto.CancelOrderMessage) error {
	s.mu.Lock()
	sess, ok := s.sessions[addr]
	var orderID uint64
	if ok {
		orderID, ok = sess.orders[m.ClientOrderID]
	}
	s.mu.Unlock()
	if !ok {
		return ErrUnknownClientOrder
	}
	return s.engine.CancelOrder(orderID)
}

// reportTrade sends an ExecutionReport to each side of trade that has a
// live connected session; a side with no session (e.g. historical replay
// flow) is silently skipped.
func (s *Server) reportTrade(trade common.Trade) {
	s.send(trade.Party.Owner, &netproto.Report{
		MessageType:  netproto.ExecutionReport,
		Side:         trade.Party.Side(),
		Timestamp:    trade.Timestamp.UnixNano(),
		Quantity:     trade.MatchQty,
		Price:        trade.Price,
		Symbol:       trade.Party.Symbol,
		Counterparty: trade.CounterParty.Owner,
	})
	s.send(trade.CounterParty.Owner, &netproto.Report{
		MessageType:  netproto.ExecutionReport,
		Side:         trade.CounterParty.Side(),
		Timestamp:    trade.Timestamp.UnixNano(),
		Quantity:     trade.MatchQty,
		Price:        trade.Price,
		Symbol:       trade.CounterParty.Symbol,
		Counterparty: trade.Party.Owner,
	})
}

func (s *Server) sendError(addr string, cause error) {
	s.mu.Lock()
	sess, ok := s.sessions[addr]
	s.mu.Unlock()
	if !ok {
		return
	}
	report := &netproto.Report{MessageType: netproto.ErrorReport, Timestamp: time.Now().UnixNano(), Err: cause.Error()}
	if _, err := sess.conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("address", addr).Msg("sending error report")
	}
}

func (s *Server) send(owner string, report *netproto.Report) {
	s.mu.Lock()
	addr, ok := s.ownerIndex[owner]
	var sess *session
	if ok {
		sess, ok = s.sessions[addr]
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if _, err := sess.conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("owner", owner).Msg("sending report")
		s.removeSession(addr)
	}
}

// handleConnection is a pool worker: it reads one message off conn, decodes
// it and hands it to the session handler, then re-queues the connection for
// its next message. A read or parse failure tears the session down; a parse
// failure is first reported back to the client as an ErrorReport.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	addr := conn.RemoteAddr().String()
	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", addr).Msg("setting read deadline")
		s.closeSession(conn)
		return nil
	}

	select {
	case <-t.Dying():
		return nil
	default:
	}

	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Debug().Err(err).Str("address", addr).Msg("connection closed")
		s.closeSession(conn)
		return nil
	}

	msg, err := netproto.ParseMessage(buf[:n])
	if err != nil {
		log.Error().Err(err).Str("address", addr).Msg("parsing message")
		s.sendError(addr, err)
		s.closeSession(conn)
		return nil
	}

	s.inbound <- inboundMessage{addr: addr, msg: msg}
	s.pool.AddTask(conn)
	return nil
}

func (s *Server) closeSession(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	s.removeSession(addr)
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Str("address", addr).Msg("closing connection")
	}
}
