package sink

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/hakimelghazi/matching-core/internal/engine"
	"github.com/hakimelghazi/matching-core/internal/protocol"
)

// Writer prints events in the text protocol, one per line.
type Writer struct {
	name string
	mu   sync.Mutex
	bw   *bufio.Writer
	buf  []byte
}

// NewWriter wraps w. Closing the target flushes w but does not close it.
func NewWriter(name string, w io.Writer) *Writer {
	return &Writer{name: name, bw: bufio.NewWriter(w)}
}

func (w *Writer) Name() string { return w.name }

func (w *Writer) Deliver(_ context.Context, batch []engine.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ev := range batch {
		w.buf = protocol.AppendEvent(w.buf[:0], ev)
		w.buf = append(w.buf, '\n')
		if _, err := w.bw.Write(w.buf); err != nil {
			return err
		}
	}
	return w.bw.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bw.Flush()
}
