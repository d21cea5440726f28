// Package sink delivers engine events to the outside world without ever
// blocking the matching path.
package sink

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hakimelghazi/matching-core/internal/engine"
)

// MaxBatch caps how many events one Deliver call carries.
const MaxBatch = 512

// Target is a delivery destination driven by a Dispatcher.
type Target interface {
	Name() string
	Deliver(ctx context.Context, batch []engine.Event) error
	Close() error
}

// Dispatcher queues published events in memory and hands them, in publish
// order, to its targets from a single goroutine running Run.
type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []engine.Event
	closed  bool
	dropped int

	targets []Target
	logger  *zap.Logger
	done    chan struct{}
}

func NewDispatcher(logger *zap.Logger, targets ...Target) *Dispatcher {
	d := &Dispatcher{
		targets: targets,
		logger:  logger,
		done:    make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Publish enqueues ev. Events published after Close are dropped.
func (d *Dispatcher) Publish(ev engine.Event) {
	d.mu.Lock()
	if d.closed {
		d.dropped++
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
	d.cond.Signal()
}

// Run delivers until Close is called and the queue is drained, then closes
// every target. ctx is passed to each Deliver call.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	for {
		batch, ok := d.next()
		if !ok {
			return d.closeTargets()
		}
		d.deliver(ctx, batch)
	}
}

func (d *Dispatcher) next() ([]engine.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queue) == 0 && !d.closed {
		d.cond.Wait()
	}
	if len(d.queue) == 0 {
		return nil, false
	}
	n := min(len(d.queue), MaxBatch)
	batch := d.queue[:n:n]
	d.queue = d.queue[n:]
	if len(d.queue) == 0 {
		d.queue = nil
	}
	return batch, true
}

func (d *Dispatcher) deliver(ctx context.Context, batch []engine.Event) {
	for _, t := range d.targets {
		if err := t.Deliver(ctx, batch); err != nil {
			d.logger.Warn("event delivery failed",
				zap.String("target", t.Name()),
				zap.Int("events", len(batch)),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) closeTargets() error {
	var errs []error
	for _, t := range d.targets {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.mu.Lock()
	dropped := d.dropped
	d.mu.Unlock()
	if dropped > 0 {
		d.logger.Warn("events published after close were dropped", zap.Int("dropped", dropped))
	}
	return errors.Join(errs...)
}

// Close stops accepting events. Run returns once the backlog is delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
}

// Done is closed when Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Pending is the number of queued, undelivered events.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Fanout publishes every event to each sink in order.
type Fanout []engine.Sink

func (f Fanout) Publish(ev engine.Event) {
	for _, s := range f {
		s.Publish(ev)
	}
}
