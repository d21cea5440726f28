package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder is a Sink that keeps every event in publish order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) kind(k EventKind) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func newTestBook() (*OrderBook, *recorder) {
	rec := &recorder{}
	return NewOrderBook("GOOG", NewClock(), rec, nil), rec
}

func newTestOrder(id uint32, side Side, price, qty uint32) *Order {
	return NewOrder(id, "GOOG", side, price, qty)
}

func buy(id uint32, instrument string, price, count uint32) Command {
	return Command{Type: CmdBuy, OrderID: id, Instrument: instrument, Price: price, Count: count}
}

func sell(id uint32, instrument string, price, count uint32) Command {
	return Command{Type: CmdSell, OrderID: id, Instrument: instrument, Price: price, Count: count}
}

func cancel(id uint32) Command {
	return Command{Type: CmdCancel, OrderID: id}
}

func mustHandle(t *testing.T, s *Session, cmds ...Command) {
	t.Helper()
	for _, c := range cmds {
		require.NoError(t, s.Handle(c))
	}
}
