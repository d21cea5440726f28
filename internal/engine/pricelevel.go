package engine

import (
	"container/list"
	"fmt"
)

// PriceLevel holds FIFO orders for one price.
type PriceLevel struct {
	price  uint32
	orders *list.List // of *Order, oldest first
}

func NewPriceLevel(price uint32) *PriceLevel {
	return &PriceLevel{price: price, orders: list.New()}
}

func (pl *PriceLevel) Price() uint32 { return pl.price }
func (pl *PriceLevel) Size() int     { return pl.orders.Len() }

func (pl *PriceLevel) Push(o *Order) {
	if o.Price != pl.price {
		panic(fmt.Sprintf("engine: order %d at %d pushed onto level %d", o.ID, o.Price, pl.price))
	}
	o.elem = pl.orders.PushBack(o)
}

// Front returns the oldest order without removing it, nil when empty.
func (pl *PriceLevel) Front() *Order {
	e := pl.orders.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Order)
}

func (pl *PriceLevel) Pop() *Order {
	e := pl.orders.Front()
	if e == nil {
		panic(fmt.Sprintf("engine: pop from empty level %d", pl.price))
	}
	o := pl.orders.Remove(e).(*Order)
	if o.Price != pl.price {
		panic(fmt.Sprintf("engine: order %d at %d dequeued from level %d", o.ID, o.Price, pl.price))
	}
	o.elem = nil
	return o
}

// Remove unlinks o from anywhere in the queue. It reports false when o is not
// queued here.
func (pl *PriceLevel) Remove(o *Order) bool {
	if o.elem == nil || o.Price != pl.price {
		return false
	}
	pl.orders.Remove(o.elem)
	o.elem = nil
	return true
}

// each visits queued orders oldest first until fn returns false.
func (pl *PriceLevel) each(fn func(*Order) bool) {
	for e := pl.orders.Front(); e != nil; e = e.Next() {
		if !fn(e.Value.(*Order)) {
			return
		}
	}
}
