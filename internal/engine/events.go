package engine

import "fmt"

type EventKind uint8

const (
	EventAdded EventKind = iota + 1
	EventExecuted
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventExecuted:
		return "executed"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalText() ([]byte, error) {
	if k < EventAdded || k > EventDeleted {
		return nil, fmt.Errorf("engine: unknown event kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "added":
		*k = EventAdded
	case "executed":
		*k = EventExecuted
	case "deleted":
		*k = EventDeleted
	default:
		return fmt.Errorf("engine: unknown event kind %q", b)
	}
	return nil
}

// Event is one observable outcome of the engine.
//
//	added:    OrderID, Side, Price, Quantity (remaining), Timestamp
//	executed: OrderID (resting), IncomingID, ExecutionSeq, Price, Quantity
//	deleted:  OrderID, Found
type Event struct {
	Kind         EventKind `json:"kind"`
	Instrument   string    `json:"instrument,omitempty"`
	OrderID      uint32    `json:"order_id"`
	IncomingID   uint32    `json:"incoming_id,omitempty"`
	Side         Side      `json:"side,omitempty"`
	Price        uint32    `json:"price,omitempty"`
	Quantity     uint32    `json:"quantity,omitempty"`
	ExecutionSeq uint32    `json:"execution_seq,omitempty"`
	Found        bool      `json:"found,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}

// Sink receives events in the order the engine produces them. Publish must
// not block on delivery.
type Sink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

func addedEvent(o *Order) Event {
	return Event{
		Kind:       EventAdded,
		Instrument: o.Instrument,
		OrderID:    o.ID,
		Side:       o.Side,
		Price:      o.Price,
		Quantity:   o.remaining,
		Timestamp:  o.Timestamp(),
	}
}

func deletedEvent(instrument string, id uint32, found bool, ts int64) Event {
	return Event{
		Kind:       EventDeleted,
		Instrument: instrument,
		OrderID:    id,
		Found:      found,
		Timestamp:  ts,
	}
}
