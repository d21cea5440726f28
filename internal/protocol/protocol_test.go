package protocol

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakimelghazi/matching-core/internal/engine"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want engine.Command
	}{
		{"B 123 GOOG 2705 30", engine.Command{Type: engine.CmdBuy, OrderID: 123, Instrument: "GOOG", Price: 2705, Count: 30}},
		{"S 7 AAPL 1 4294967295", engine.Command{Type: engine.CmdSell, OrderID: 7, Instrument: "AAPL", Price: 1, Count: 4294967295}},
		{"  C   123 ", engine.Command{Type: engine.CmdCancel, OrderID: 123}},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrMalformed},
		{"Q 1", ErrUnknownCommand},
		{"b 1 GOOG 1 1", ErrUnknownCommand},
		{"C", ErrMalformed},
		{"C 1 2", ErrMalformed},
		{"C x", ErrMalformed},
		{"B 1 GOOG 100", ErrMalformed},
		{"B 1 GOOG -5 10", ErrMalformed},
		{"S 1 GOOG 5 4294967296", ErrMalformed},
	}
	for _, tt := range tests {
		_, err := ParseCommand(tt.line)
		assert.ErrorIs(t, err, tt.want, tt.line)
	}
}

func TestDecoderSkipsCommentsAndBlanks(t *testing.T) {
	d := NewDecoder(strings.NewReader("# header\n\nB 1 GOOG 100 10\n  \nC 1\n"))

	cmd, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, engine.CmdBuy, cmd.Type)
	assert.Equal(t, 3, d.Line())

	cmd, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, engine.CmdCancel, cmd.Type)

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderReportsLine(t *testing.T) {
	d := NewDecoder(strings.NewReader("B 1 GOOG 100 10\nB nope\n"))
	_, err := d.Next()
	require.NoError(t, err)
	_, err = d.Next()
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "line 2")
}

func TestDecoderLineTooLong(t *testing.T) {
	d := NewDecoder(strings.NewReader("B 1 " + strings.Repeat("G", MaxLineLen) + " 1 1\n"))
	_, err := d.Next()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		ev   engine.Event
		want string
	}{
		{
			engine.Event{Kind: engine.EventAdded, OrderID: 1, Instrument: "GOOG", Side: engine.SideBuy, Price: 100, Quantity: 10, Timestamp: 5},
			"B 1 GOOG 100 10 5",
		},
		{
			engine.Event{Kind: engine.EventAdded, OrderID: 2, Instrument: "GOOG", Side: engine.SideSell, Price: 101, Quantity: 3, Timestamp: 6},
			"S 2 GOOG 101 3 6",
		},
		{
			engine.Event{Kind: engine.EventExecuted, OrderID: 1, IncomingID: 2, ExecutionSeq: 1, Price: 100, Quantity: 10, Timestamp: 9},
			"E 1 2 1 100 10 9",
		},
		{engine.Event{Kind: engine.EventDeleted, OrderID: 4, Found: true, Timestamp: 11}, "X 4 A 11"},
		{engine.Event{Kind: engine.EventDeleted, OrderID: 5, Timestamp: 12}, "X 5 R 12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatEvent(tt.ev))
	}
}

func TestEventJSON(t *testing.T) {
	ev := engine.Event{Kind: engine.EventExecuted, Instrument: "GOOG", OrderID: 1, IncomingID: 2, ExecutionSeq: 3, Price: 100, Quantity: 4, Timestamp: 99}
	data, err := MarshalEvent(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"executed"`)

	back, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, ev, back)
}
