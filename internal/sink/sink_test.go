package sink

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hakimelghazi/matching-core/internal/engine"
	"github.com/hakimelghazi/matching-core/internal/protocol"
)

type captureTarget struct {
	mu      sync.Mutex
	events  []engine.Event
	batches int
	closed  bool
	err     error
	block   chan struct{}
}

func (c *captureTarget) Name() string { return "capture" }

func (c *captureTarget) Deliver(_ context.Context, batch []engine.Event) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, batch...)
	c.batches++
	return c.err
}

func (c *captureTarget) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func runDispatcher(t *testing.T, targets ...Target) *Dispatcher {
	t.Helper()
	d := NewDispatcher(zaptest.NewLogger(t), targets...)
	go func() { _ = d.Run(context.Background()) }()
	return d
}

func closeAndWait(t *testing.T, d *Dispatcher) {
	t.Helper()
	d.Close()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not drain")
	}
}

func executed(id uint32) engine.Event {
	return engine.Event{Kind: engine.EventExecuted, Instrument: "GOOG", OrderID: id, IncomingID: id + 1, Price: 100, Quantity: 1, ExecutionSeq: 1, Timestamp: int64(id)}
}

func TestDispatcherKeepsPublishOrder(t *testing.T) {
	c := &captureTarget{}
	d := runDispatcher(t, c)
	for i := range 2000 {
		d.Publish(executed(uint32(i)))
	}
	closeAndWait(t, d)

	require.Len(t, c.events, 2000)
	for i, ev := range c.events {
		assert.Equal(t, uint32(i), ev.OrderID)
	}
	assert.True(t, c.closed)
}

func TestDispatcherPublishDoesNotWaitForDelivery(t *testing.T) {
	c := &captureTarget{block: make(chan struct{})}
	d := runDispatcher(t, c)

	done := make(chan struct{})
	go func() {
		for i := range 10 * MaxBatch {
			d.Publish(executed(uint32(i)))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked behind a stuck target")
	}

	close(c.block)
	closeAndWait(t, d)
	assert.Len(t, c.events, 10*MaxBatch)
	assert.GreaterOrEqual(t, c.batches, 10)
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	c := &captureTarget{}
	d := runDispatcher(t, c)
	d.Publish(executed(1))
	closeAndWait(t, d)
	d.Publish(executed(2))

	assert.Len(t, c.events, 1)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcherSurvivesTargetErrors(t *testing.T) {
	bad := &captureTarget{err: errors.New("down")}
	good := &captureTarget{}
	d := runDispatcher(t, bad, good)
	d.Publish(executed(1))
	d.Publish(executed(2))
	closeAndWait(t, d)

	assert.Len(t, good.events, 2)
}

func TestFanout(t *testing.T) {
	var a, b []uint32
	f := Fanout{
		engine.SinkFunc(func(ev engine.Event) { a = append(a, ev.OrderID) }),
		engine.SinkFunc(func(ev engine.Event) { b = append(b, ev.OrderID) }),
	}
	f.Publish(executed(1))
	f.Publish(executed(2))
	assert.Equal(t, []uint32{1, 2}, a)
	assert.Equal(t, []uint32{1, 2}, b)
}

func TestWriterFormatsLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter("buf", &buf)
	require.NoError(t, w.Deliver(context.Background(), []engine.Event{
		{Kind: engine.EventAdded, Instrument: "GOOG", OrderID: 1, Side: engine.SideBuy, Price: 100, Quantity: 10, Timestamp: 1},
		{Kind: engine.EventDeleted, OrderID: 1, Found: true, Timestamp: 2},
	}))
	assert.Equal(t, "B 1 GOOG 100 10 1\nX 1 A 2\n", buf.String())
	assert.NoError(t, w.Close())
}

type fakeKafka struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

func TestKafkaKeysByInstrument(t *testing.T) {
	fk := &fakeKafka{}
	k := &Kafka{topic: "events", w: fk}
	require.NoError(t, k.Deliver(context.Background(), []engine.Event{
		executed(1),
		{Kind: engine.EventDeleted, OrderID: 9, Timestamp: 3},
	}))

	require.Len(t, fk.msgs, 2)
	assert.Equal(t, []byte("GOOG"), fk.msgs[0].Key)
	assert.Nil(t, fk.msgs[1].Key, "not-found deletes carry no instrument")
	assert.Equal(t, "kind", fk.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("executed"), fk.msgs[0].Headers[0].Value)

	ev, err := protocol.UnmarshalEvent(fk.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, executed(1), ev)

	assert.Equal(t, "kafka:events", k.Name())
	require.NoError(t, k.Close())
	assert.True(t, fk.closed)
}

type fakeBatchResults struct {
	execs int
	err   error
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	f.execs++
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (f *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (f *fakeBatchResults) Close() error              { return nil }

type fakeSender struct {
	batches []*pgx.Batch
	results *fakeBatchResults
}

func (f *fakeSender) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b)
	return f.results
}

func TestPostgresQueuesOneInsertPerEvent(t *testing.T) {
	fs := &fakeSender{results: &fakeBatchResults{}}
	p := NewPostgres(fs)
	batch := []engine.Event{executed(1), executed(2), {Kind: engine.EventDeleted, OrderID: 3, Found: true, Timestamp: 4}}
	require.NoError(t, p.Deliver(context.Background(), batch))

	require.Len(t, fs.batches, 1)
	qs := fs.batches[0].QueuedQueries
	require.Len(t, qs, 3)
	assert.Equal(t, insertEventSQL, qs[0].SQL)
	assert.Equal(t, "executed", qs[0].Arguments[1])
	assert.Equal(t, int64(1), qs[0].Arguments[3])
	assert.Equal(t, "deleted", qs[2].Arguments[1])
	assert.Equal(t, 3, fs.results.execs)
}

func TestPostgresReportsInsertError(t *testing.T) {
	boom := errors.New("constraint")
	fs := &fakeSender{results: &fakeBatchResults{err: boom}}
	err := NewPostgres(fs).Deliver(context.Background(), []engine.Event{executed(1)})
	assert.ErrorIs(t, err, boom)
}
