package engine

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "B", "BUY":
		return SideBuy, nil
	case "S", "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
	}
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order is one limit order. Identity fields are immutable after NewOrder.
// The mutable state is guarded by whichever lock currently publishes the
// order: the ladder lock of the side being matched while it is the incoming
// order, its own ladder lock once it has been activated.
type Order struct {
	ID         uint32
	Instrument string
	Side       Side
	Price      uint32
	Quantity   uint32 // original quantity

	remaining uint32
	timestamp int64
	stamped   bool
	execSeq   uint32
	cancelled bool

	activated atomic.Bool
	ready     chan struct{}

	// position inside its price level, nil once dequeued
	elem *list.Element
	// cancel index holding this order, if any
	index *orderIndex
}

func NewOrder(id uint32, instrument string, side Side, price, qty uint32) *Order {
	return &Order{
		ID:         id,
		Instrument: instrument,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		remaining:  qty,
		ready:      make(chan struct{}),
	}
}

// Timestamp is the arrival time. It is fixed before the order is published.
func (o *Order) Timestamp() int64 { return o.timestamp }

// SetTimestamp records the arrival time. It may only be called once.
func (o *Order) SetTimestamp(ts int64) {
	if o.stamped {
		panic(fmt.Sprintf("engine: order %d timestamped twice", o.ID))
	}
	o.timestamp = ts
	o.stamped = true
}

// Fill takes qty off the remaining quantity and bumps the execution counter.
func (o *Order) Fill(qty uint32) {
	if qty > o.remaining {
		panic(fmt.Sprintf("engine: order %d over-filled: fill %d > remaining %d", o.ID, qty, o.remaining))
	}
	o.remaining -= qty
	o.execSeq++
}

// Activate publishes the order to matchers on the opposite side and wakes any
// of them parked on it.
func (o *Order) Activate() {
	if !o.activated.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("engine: order %d activated twice", o.ID))
	}
	close(o.ready)
}

func (o *Order) Activated() bool { return o.activated.Load() }

// awaitActivation parks until the order is activated. l is held on entry and
// on return; it is released while parked.
func (o *Order) awaitActivation(l sync.Locker) {
	if o.activated.Load() {
		return
	}
	l.Unlock()
	<-o.ready
	l.Lock()
}

func (o *Order) terminal() bool {
	return o.remaining == 0 || o.cancelled
}

// retire frees the order's id in its cancel index once it is filled.
func (o *Order) retire() {
	if o.index != nil {
		o.index.drop(o)
	}
}
