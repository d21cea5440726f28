package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/hakimelghazi/matching-core/internal/engine"
)

// AppendEvent appends the text form of ev, without a trailing newline:
//
//	B|S <order_id> <instrument> <price> <remaining> <ts>   added
//	E <resting_id> <incoming_id> <exec_seq> <price> <qty> <ts>
//	X <order_id> A|R <ts>                                  deleted (accepted/rejected)
func AppendEvent(buf []byte, ev engine.Event) []byte {
	switch ev.Kind {
	case engine.EventAdded:
		if ev.Side == engine.SideSell {
			buf = append(buf, 'S')
		} else {
			buf = append(buf, 'B')
		}
		buf = appendUint(buf, ev.OrderID)
		buf = append(buf, ' ')
		buf = append(buf, ev.Instrument...)
		buf = appendUint(buf, ev.Price)
		buf = appendUint(buf, ev.Quantity)
	case engine.EventExecuted:
		buf = append(buf, 'E')
		buf = appendUint(buf, ev.OrderID)
		buf = appendUint(buf, ev.IncomingID)
		buf = appendUint(buf, ev.ExecutionSeq)
		buf = appendUint(buf, ev.Price)
		buf = appendUint(buf, ev.Quantity)
	case engine.EventDeleted:
		buf = append(buf, 'X')
		buf = appendUint(buf, ev.OrderID)
		if ev.Found {
			buf = append(buf, " A"...)
		} else {
			buf = append(buf, " R"...)
		}
	default:
		buf = append(buf, '?')
	}
	buf = append(buf, ' ')
	return strconv.AppendInt(buf, ev.Timestamp, 10)
}

func FormatEvent(ev engine.Event) string {
	return string(AppendEvent(nil, ev))
}

func appendUint(buf []byte, v uint32) []byte {
	buf = append(buf, ' ')
	return strconv.AppendUint(buf, uint64(v), 10)
}

// MarshalEvent is the JSON form used on the message bus.
func MarshalEvent(ev engine.Event) ([]byte, error) {
	return json.Marshal(ev)
}

func UnmarshalEvent(data []byte) (engine.Event, error) {
	var ev engine.Event
	err := json.Unmarshal(data, &ev)
	return ev, err
}
