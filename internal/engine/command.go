// internal/engine/command.go
package engine

import "fmt"

type CommandType int

const (
	CmdBuy CommandType = iota + 1
	CmdSell
	CmdCancel
)

func (t CommandType) String() string {
	switch t {
	case CmdBuy:
		return "buy"
	case CmdSell:
		return "sell"
	case CmdCancel:
		return "cancel"
	default:
		return fmt.Sprintf("CommandType(%d)", int(t))
	}
}

// MaxInstrumentLen bounds instrument symbols.
const MaxInstrumentLen = 8

type Command struct {
	Type       CommandType
	OrderID    uint32
	Instrument string // unused for cancels
	Price      uint32
	Count      uint32
}

func (c Command) Side() Side {
	if c.Type == CmdSell {
		return SideSell
	}
	return SideBuy
}

func (c Command) Validate() error {
	switch c.Type {
	case CmdCancel:
		return nil
	case CmdBuy, CmdSell:
	default:
		return fmt.Errorf("%w: unknown command type %d", ErrInvalidOrder, int(c.Type))
	}
	if c.Instrument == "" || len(c.Instrument) > MaxInstrumentLen {
		return fmt.Errorf("%w: instrument %q must be 1-%d bytes", ErrInvalidOrder, c.Instrument, MaxInstrumentLen)
	}
	if c.Price == 0 {
		return fmt.Errorf("%w: order %d has zero price", ErrInvalidOrder, c.OrderID)
	}
	if c.Count == 0 {
		return fmt.Errorf("%w: order %d has zero quantity", ErrInvalidOrder, c.OrderID)
	}
	return nil
}
