package engine

import (
	"fmt"
	"sync"
	"time"
)

// OrderBook is the book of one instrument.
//
// Lock roles:
//   - buyMu / sellMu serialize submissions on one side for their whole run.
//   - seqMu makes timestamp assignment plus insertion into the own ladder one
//     step across both sides, so arrival order equals insertion order.
//   - each ladder's mu guards that ladder's structure. A matcher holds the
//     opposite ladder's mu for its walk and releases it only while parked
//     on a resting order's activation.
type OrderBook struct {
	instrument string
	clock      *Clock
	sink       Sink
	metrics    *Metrics

	buyMu  sync.Mutex
	sellMu sync.Mutex
	seqMu  sync.Mutex

	bids *ladder
	asks *ladder
}

func NewOrderBook(instrument string, clock *Clock, sink Sink, metrics *Metrics) *OrderBook {
	if clock == nil {
		clock = NewClock()
	}
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	return &OrderBook{
		instrument: instrument,
		clock:      clock,
		sink:       sink,
		metrics:    metrics,
		bids:       newLadder(bidRules),
		asks:       newLadder(askRules),
	}
}

func (b *OrderBook) Instrument() string { return b.instrument }

func (b *OrderBook) own(s Side) *ladder {
	if s == SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) opposite(s Side) *ladder {
	return b.own(s.Opposite())
}

func (b *OrderBook) submitLock(s Side) *sync.Mutex {
	if s == SideBuy {
		return &b.buyMu
	}
	return &b.sellMu
}

// Submit timestamps o, rests it on its own ladder, matches it against the
// opposite ladder and finally activates it. The added event, if any, is
// published before activation so no execution against o can precede it. A
// fully filled o leaves its ladder before activation, so no matcher ever
// sees it after waiting on it.
func (b *OrderBook) Submit(o *Order) {
	if o.Instrument != b.instrument {
		panic(fmt.Sprintf("engine: order %d for %q submitted to book %q", o.ID, o.Instrument, b.instrument))
	}
	if o.Activated() {
		panic(fmt.Sprintf("engine: order %d submitted after activation", o.ID))
	}

	mu := b.submitLock(o.Side)
	mu.Lock()
	defer mu.Unlock()
	start := time.Now()

	own := b.own(o.Side)
	b.seqMu.Lock()
	o.SetTimestamp(b.clock.Now())
	own.mu.Lock()
	own.insert(o)
	own.mu.Unlock()
	b.seqMu.Unlock()

	if filled := b.match(o); filled {
		own.mu.Lock()
		own.evict(o)
		own.mu.Unlock()
		o.retire()
	} else {
		b.sink.Publish(addedEvent(o))
	}
	o.Activate()
	b.metrics.orderSubmitted(o.Side, start)
}

// match walks the opposite ladder in price-time priority and reports whether
// in was completely filled.
func (b *OrderBook) match(in *Order) bool {
	opp := b.opposite(in.Side)
	opp.mu.Lock()
	defer opp.mu.Unlock()

	for in.remaining > 0 {
		lvl := opp.firstVisible(in)
		if lvl == nil {
			return false
		}
		resting := lvl.Front()
		if !resting.Activated() {
			b.metrics.activationWait()
			resting.awaitActivation(&opp.mu)
			// the ladder may have changed while parked
			continue
		}
		if resting.remaining == 0 {
			panic(fmt.Sprintf("engine: filled order %d left resting at %d", resting.ID, resting.Price))
		}

		qty := min(in.remaining, resting.remaining)
		resting.Fill(qty)
		in.Fill(qty)
		b.sink.Publish(Event{
			Kind:         EventExecuted,
			Instrument:   b.instrument,
			OrderID:      resting.ID,
			IncomingID:   in.ID,
			Price:        resting.Price,
			Quantity:     qty,
			ExecutionSeq: resting.execSeq,
			Timestamp:    b.clock.Now(),
		})
		b.metrics.executed(qty)

		if resting.remaining == 0 {
			opp.pop(lvl)
			resting.retire()
		}
	}
	return true
}

// Cancel removes o from its ladder if it is still resting and publishes the
// deletion outcome. An order already filled counts as not found.
func (b *OrderBook) Cancel(o *Order) bool {
	found := b.remove(o)
	b.sink.Publish(deletedEvent(b.instrument, o.ID, found, b.clock.Now()))
	b.metrics.cancelled(found)
	return found
}

func (b *OrderBook) remove(o *Order) bool {
	own := b.own(o.Side)
	own.mu.Lock()
	defer own.mu.Unlock()

	o.awaitActivation(&own.mu)
	if o.terminal() {
		return false
	}
	if !own.evict(o) {
		return false
	}
	o.cancelled = true
	return true
}

type DepthLevel struct {
	Price    uint32 `json:"price"`
	Quantity uint64 `json:"quantity"`
	Orders   int    `json:"orders"`
}

type Depth struct {
	Instrument string       `json:"instrument"`
	Bids       []DepthLevel `json:"bids"`
	Asks       []DepthLevel `json:"asks"`
}

// Depth aggregates activated resting quantity per level, best first, up to
// n levels per side. n <= 0 returns every level.
func (b *OrderBook) Depth(n int) Depth {
	return Depth{
		Instrument: b.instrument,
		Bids:       b.bids.depth(n),
		Asks:       b.asks.depth(n),
	}
}

func (l *ladder) depth(n int) []DepthLevel {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DepthLevel, 0)
	l.walk(func(lvl *PriceLevel) bool {
		dl := DepthLevel{Price: lvl.Price()}
		lvl.each(func(o *Order) bool {
			if o.Activated() && !o.terminal() {
				dl.Quantity += uint64(o.remaining)
				dl.Orders++
			}
			return true
		})
		if dl.Orders > 0 {
			out = append(out, dl)
		}
		return n <= 0 || len(out) < n
	})
	return out
}
