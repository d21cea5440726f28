// Package protocol is the line codec spoken on client connections.
//
// Inbound, one command per line:
//
//	B <order_id> <instrument> <price> <count>
//	S <order_id> <instrument> <price> <count>
//	C <order_id>
//
// Blank lines and lines starting with # are ignored.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hakimelghazi/matching-core/internal/engine"
)

var (
	ErrMalformed      = errors.New("malformed command")
	ErrUnknownCommand = errors.New("unknown command")
)

// MaxLineLen bounds a single inbound line.
const MaxLineLen = 256

func ParseCommand(line string) (engine.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return engine.Command{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	var cmd engine.Command
	switch fields[0] {
	case "B":
		cmd.Type = engine.CmdBuy
	case "S":
		cmd.Type = engine.CmdSell
	case "C":
		cmd.Type = engine.CmdCancel
		if len(fields) != 2 {
			return engine.Command{}, fmt.Errorf("%w: cancel wants 1 argument, got %d", ErrMalformed, len(fields)-1)
		}
		id, err := parseUint32("order id", fields[1])
		if err != nil {
			return engine.Command{}, err
		}
		cmd.OrderID = id
		return cmd, nil
	default:
		return engine.Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}

	if len(fields) != 5 {
		return engine.Command{}, fmt.Errorf("%w: order wants 4 arguments, got %d", ErrMalformed, len(fields)-1)
	}
	var err error
	if cmd.OrderID, err = parseUint32("order id", fields[1]); err != nil {
		return engine.Command{}, err
	}
	cmd.Instrument = fields[2]
	if cmd.Price, err = parseUint32("price", fields[3]); err != nil {
		return engine.Command{}, err
	}
	if cmd.Count, err = parseUint32("count", fields[4]); err != nil {
		return engine.Command{}, err
	}
	return cmd, nil
}

func parseUint32(what, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q", ErrMalformed, what, s)
	}
	return uint32(v), nil
}

// Decoder reads commands from a stream.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, MaxLineLen), MaxLineLen)
	return &Decoder{sc: sc}
}

// Next returns the next command, io.EOF at a clean end of stream.
func (d *Decoder) Next() (engine.Command, error) {
	for d.sc.Scan() {
		d.line++
		text := strings.TrimSpace(d.sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cmd, err := ParseCommand(text)
		if err != nil {
			return engine.Command{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		return cmd, nil
	}
	if err := d.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return engine.Command{}, fmt.Errorf("line %d: %w: line too long", d.line+1, ErrMalformed)
		}
		return engine.Command{}, err
	}
	return engine.Command{}, io.EOF
}

// Line is the number of the last line read.
func (d *Decoder) Line() int { return d.line }
