package engine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// CancelScope decides which orders a session may cancel.
type CancelScope string

const (
	// ScopeSession resolves cancels against orders created by the same session.
	ScopeSession CancelScope = "session"
	// ScopeGlobal resolves cancels against every live order id in the engine.
	ScopeGlobal CancelScope = "global"
)

func ParseCancelScope(s string) (CancelScope, error) {
	switch CancelScope(s) {
	case ScopeSession, ScopeGlobal:
		return CancelScope(s), nil
	default:
		return "", fmt.Errorf("unknown cancel scope %q", s)
	}
}

type Engine struct {
	books   *Registry
	sink    Sink
	clock   *Clock
	logger  *zap.Logger
	metrics *Metrics
	scope   CancelScope
	global  *orderIndex
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option      { return func(e *Engine) { e.logger = l } }
func WithMetrics(m *Metrics) Option        { return func(e *Engine) { e.metrics = m } }
func WithClock(c *Clock) Option            { return func(e *Engine) { e.clock = c } }
func WithCancelScope(s CancelScope) Option { return func(e *Engine) { e.scope = s } }

func New(sink Sink, opts ...Option) *Engine {
	e := &Engine{
		sink:   sink,
		clock:  NewClock(),
		logger: zap.NewNop(),
		scope:  ScopeSession,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = SinkFunc(func(Event) {})
	}
	if e.scope == ScopeGlobal {
		e.global = newOrderIndex()
	}
	e.books = NewRegistry(func(instrument string) *OrderBook {
		return NewOrderBook(instrument, e.clock, e.sink, e.metrics)
	})
	e.books.OnCreate(func(instrument string) {
		e.metrics.bookCreated()
		e.logger.Debug("order book created", zap.String("instrument", instrument))
	})
	return e
}

func (e *Engine) Books() *Registry { return e.books }

// NewSession returns the command handler for one client channel. A session
// is not safe for concurrent use; distinct sessions are.
func (e *Engine) NewSession(id string) *Session {
	orders := e.global
	if orders == nil {
		orders = newOrderIndex()
	}
	return &Session{
		id:     id,
		engine: e,
		orders: orders,
		logger: e.logger.With(zap.String("session", id)),
	}
}

type Session struct {
	id     string
	engine *Engine
	orders *orderIndex
	logger *zap.Logger
}

func (s *Session) ID() string { return s.id }

// Handle runs one command to completion. A returned error means the command
// was rejected before it touched any book.
func (s *Session) Handle(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if cmd.Type == CmdCancel {
		s.cancel(cmd.OrderID)
		return nil
	}
	return s.submit(cmd)
}

func (s *Session) submit(cmd Command) error {
	o := NewOrder(cmd.OrderID, cmd.Instrument, cmd.Side(), cmd.Price, cmd.Count)
	if !s.orders.claim(o) {
		return fmt.Errorf("%w: %d", ErrDuplicateOrder, cmd.OrderID)
	}
	s.logger.Debug("submit",
		zap.Uint32("order_id", o.ID),
		zap.String("instrument", o.Instrument),
		zap.String("side", string(o.Side)),
		zap.Uint32("price", o.Price),
		zap.Uint32("count", o.Quantity))
	s.engine.books.Resolve(o.Instrument).Submit(o)
	return nil
}

func (s *Session) cancel(id uint32) {
	s.logger.Debug("cancel", zap.Uint32("order_id", id))
	o, ok := s.orders.release(id)
	if !ok {
		e := s.engine
		e.sink.Publish(deletedEvent("", id, false, e.clock.Now()))
		e.metrics.cancelled(false)
		return
	}
	s.engine.books.Resolve(o.Instrument).Cancel(o)
}

// Close drops the session's order table. Orders it created keep resting.
func (s *Session) Close() {
	if s.orders != s.engine.global {
		s.orders.reset()
	}
}

// orderIndex maps live order ids to orders for cancel lookup. Orders leave it
// when cancelled or fully filled.
type orderIndex struct {
	mu     sync.Mutex
	orders map[uint32]*Order
}

func newOrderIndex() *orderIndex {
	return &orderIndex{orders: make(map[uint32]*Order)}
}

// claim registers o unless its id is already taken.
func (x *orderIndex) claim(o *Order) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, taken := x.orders[o.ID]; taken {
		return false
	}
	x.orders[o.ID] = o
	o.index = x
	return true
}

// release removes and returns the order with id.
func (x *orderIndex) release(id uint32) (*Order, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	o, ok := x.orders[id]
	if ok {
		delete(x.orders, id)
	}
	return o, ok
}

// drop removes o if it still owns its id.
func (x *orderIndex) drop(o *Order) {
	x.mu.Lock()
	if x.orders[o.ID] == o {
		delete(x.orders, o.ID)
	}
	x.mu.Unlock()
}

func (x *orderIndex) reset() {
	x.mu.Lock()
	x.orders = make(map[uint32]*Order)
	x.mu.Unlock()
}

func (x *orderIndex) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.orders)
}
